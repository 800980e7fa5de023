// Package tasks runs chat requests asynchronously.
//
// A Manager accepts a Request, stores a Task in the processing state and
// returns at once. A fixed pool of workers builds an agent per task through
// a Factory, runs it (streaming or blocking), records the outcome in the
// Store and, when the task names a callback URL, POSTs the finished record
// there.
//
// Stores:
//
//   - MemoryStore keeps tasks in a map; they are lost on restart.
//   - SQLiteStore persists tasks with either the pure-Go "sqlite" driver
//     (modernc.org/sqlite) or the cgo "sqlite3" driver (mattn/go-sqlite3).
//
// A Pruner deletes finished tasks older than the retention window on a
// cron schedule. Only the task record is persisted; conversation history
// lives and dies with the agent that served the task.
package tasks
