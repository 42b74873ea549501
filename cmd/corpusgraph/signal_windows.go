//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals routes shutdown signals to ch.
// Ctrl+C only; Windows has no SIGTERM.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
