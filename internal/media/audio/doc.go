// Package audio extracts transcription-ready audio from downloaded media
// using ffmpeg. Output is always mono 16kHz PCM WAV.
package audio
