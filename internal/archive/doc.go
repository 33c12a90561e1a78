// Package archive persists every decoded stream message.
//
// A Writer subscribes to a connection.Manager, queues one Record per new
// message and writes them in batches to a Store:
//   - PostgresStore: COPY into stream_messages (payload as jsonb)
//   - SQLiteStore: a local file, for running without a database server
//
// Archiving never blocks the broadcaster. When the queue is full the oldest
// records are dropped and counted.
package archive
