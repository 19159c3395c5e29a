// Package main provides the londonair command: the map server, the one-shot
// populator and the Pub/Sub populate worker.
package main

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	Execute()
}
