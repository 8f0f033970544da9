package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger for injecting into components under test. Its
// output is redirected at cleanup so goroutines that outlive the test never
// write through a finished testing.T.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[flack-test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
