// Package sender creates task records and enqueues the matching broker
// messages.
package sender
