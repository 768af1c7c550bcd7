// Command scribe is the operator CLI: enqueue videos, inspect task
// records, and check daemon health.
package main
