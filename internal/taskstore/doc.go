// Package taskstore persists task lifecycle state behind a common Store
// interface with Redis and SQLite backends.
//
// The claim operation is the load-bearing piece: it moves a task from sent
// to started with a single atomic conditional write (a Lua script on Redis,
// a conditional UPDATE on SQLite), so that when the broker delivers a task
// to several workers at once exactly one of them wins it.
package taskstore
