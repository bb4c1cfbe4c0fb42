// Command scribed is the audio transcription pipeline daemon and its CLI.
// `scribed start` runs the pipeline in the foreground; the remaining
// subcommands submit audio, inspect task state, request exports, and manage
// configuration against the shared store.
package main
