// Package services provides shared error classification and context
// annotations used across pipeline stages and their external collaborators.
package services
