// Package ingest turns raw readings into stored, classified readings.
//
// Pipeline.Ingest sanitises a reading with range rules, assigns its id and
// defaults, classifies it against the history that existed before it, and
// appends it to the store. Observers (the alert engine) are notified after a
// successful append. Ingests are serialised so each one sees its
// predecessors.
//
// Consumer feeds the same pipeline from an AMQP queue.
package ingest
