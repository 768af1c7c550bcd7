// Package queue defines the broker message format shared by the sender
// and the worker.
package queue
