// Package notifications posts task outcomes to caller-provided webhooks.
package notifications
