// Package logx configures issuecast's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured and append-only
//
// Logging failures are never surfaced to callers; a broken sink must not
// take the delivery pipeline down with it.
package logx
