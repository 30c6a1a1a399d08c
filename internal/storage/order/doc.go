// Package order persists the per-project terminal tab order.
//
// The whole record is a single JSON object, project id to ordered session
// ids, stored under one fixed key in a KV backend (a JSON file, SQLite, or
// memory). Store loads it once and writes it back only when an order
// actually changes.
package order
