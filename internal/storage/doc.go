// Package storage is the single persistence layer: runtime settings,
// the seen-issue dedup set, the destination registry with its delivery
// state machine, the per-cycle batch artifact, and the user/admin table.
//
// All mutation goes through the narrow operations defined here; every
// tick of the pipeline re-reads from the database, which is what makes
// the design crash-safe.
package storage
