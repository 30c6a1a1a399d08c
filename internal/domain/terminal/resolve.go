package terminal

import "strings"

// resolveProject decides which project a session payload belongs to.
//
// For a tracked session the tracked project always wins and a differing
// payload project is a mismatch. For a new session the payload project wins
// over the caller's hint; a differing hint is reported, and no project at
// all means the session is skipped (empty result).
func resolveProject(tracked string, exists bool, payload, hint string) (string, AnomalyKind) {
	payload = strings.TrimSpace(payload)
	hint = strings.TrimSpace(hint)

	if exists {
		if payload != "" && payload != tracked {
			return tracked, AnomalyProjectMismatch
		}
		return tracked, ""
	}

	switch {
	case payload != "" && hint != "" && payload != hint:
		return payload, AnomalyHintMismatch
	case payload != "":
		return payload, ""
	case hint != "":
		return hint, ""
	default:
		return "", AnomalyUnknownProject
	}
}
