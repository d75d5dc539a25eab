//go:build windows

package cmd

import "os"

// gracefulSignals returns the OS signals that cancel the running command.
// SIGTERM does not exist on Windows.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
