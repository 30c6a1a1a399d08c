// Package config provides 12-factor configuration for worktabs.
//
// Precedence, lowest first: struct defaults, an optional YAML or TOML file,
// environment variables prefixed with WORKTABS_. CLI flags override the
// result for the few settings they expose.
//
// Configuration Sections:
//   - API: collaborator REST endpoint, auth token, timeout, retries, rate limit
//   - Terminal: reconnect delay, dial timeout, default geometry
//   - Store: tab order backend (file, sqlite, memory), path, storage key
//   - Logging: log level and output format
//   - Metrics: status server listen address, CORS origins and rate limit
//
// Example Usage:
//
//	cfg, err := config.LoadFile(os.Getenv("WORKTABS_CONFIG"))
//	client := rest.NewClient(rest.Options{BaseURL: cfg.API.BaseURL})
//
// Environment Variables:
//   - WORKTABS_API_BASE_URL, WORKTABS_API_WS_BASE_URL, WORKTABS_API_TOKEN
//   - WORKTABS_API_TIMEOUT, WORKTABS_API_RETRIES, WORKTABS_API_RATE_LIMIT
//   - WORKTABS_TERMINAL_RECONNECT_DELAY, WORKTABS_TERMINAL_DIAL_TIMEOUT
//   - WORKTABS_STORE_BACKEND, WORKTABS_STORE_PATH, WORKTABS_STORE_KEY
//   - WORKTABS_LOGGING_LEVEL, WORKTABS_LOGGING_DEVELOPMENT
//   - WORKTABS_METRICS_ADDRESS
//   - WORKTABS_METRICS_ALLOW_ORIGINS (comma separated)
//   - WORKTABS_METRICS_RATE_LIMIT, WORKTABS_METRICS_BURST
package config
