// Package store persists motor readings and serves history windows.
//
// Store is the boundary between the ingestion/query layer and persistence.
// Recent(ctx, k) returns the k most recent readings by timestamp, newest
// first, and RecentByMotor narrows that to one motor; History reverses either
// into the chronological slice the trend math expects. Readings are
// append-only: a backend that would have to overwrite returns ErrConflict.
//
// Backends: Memory (bounded retention buffer, tests and single-process runs),
// SQLite (gorm), Redis (sorted sets scored by timestamp) and DynamoDB
// (partition motor_id, sort key timestamp). Open selects one from config.
package store
