// Package coordinator enforces the ownership rules around task state:
// claim before processing, refuse to process when ownership cannot be
// verified, and never lose a terminal outcome to a transient store failure.
package coordinator
