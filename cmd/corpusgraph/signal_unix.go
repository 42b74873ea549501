//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals routes shutdown signals to ch.
// SIGINT and SIGTERM on Unix.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
