// Package logging configures structured logging for the daemon and CLI.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for machine consumption. Both honor the same
// level gate and canonical field names so downstream tooling can rely on
// task_id, stage, and worker_id being spelled consistently.
package logging
