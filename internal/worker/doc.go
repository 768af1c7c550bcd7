// Package worker consumes processing tasks from the broker. Each delivery
// is claimed through the task store before any work happens, so redundant
// deliveries and competing workers resolve to exactly one processor per
// task.
package worker
