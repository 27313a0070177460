// Command accesslog operates the access-event retention of a configured deployment:
// one-off sweeps, a cron-driven sweep loop and table checks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
