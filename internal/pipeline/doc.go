// Package pipeline sequences the per-task processing stages and owns the
// task's scratch workspace for their intermediate files.
package pipeline
