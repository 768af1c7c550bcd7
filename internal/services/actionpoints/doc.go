// Package actionpoints turns transcripts into structured action and
// context points using an OpenAI-compatible chat completion API.
package actionpoints
