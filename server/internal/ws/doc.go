// Package ws serves the live dashboard stream at /ws/stream.
//
// Frames are JSON envelopes:
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot body */ }}
//	{"event": "reading",  "data": { /* one stored reading */ }}
//
// Snapshots go out every stream.interval; readings are pushed by the ingest
// pipeline through Hub.Observe. Clients may narrow the feed with
// ?events=reading or ?events=snapshot.
package ws
