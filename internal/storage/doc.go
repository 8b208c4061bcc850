// Package storage provides the capture index: a minimal persistence layer
// recording one row per stored artifact.
//
// It currently supports:
//   - Append-only capture records (file JSONL or sqlite)
//   - Last-capture and count-since lookups (status/diagnostics)
package storage
