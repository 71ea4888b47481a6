package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/klepsydra/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the session simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Klepsydra Session Simulator
===========================

Drives simulated solve sessions against a running timer service and
verifies the trailing statistics it reports.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -solves int
        Number of solves to drive (default 25)
  -mode string
        Input mode: "toggle" sends toggle events, "hold" sends
        press/release pairs (default "toggle")
  -scale int
        Time compression divisor; 100 turns a 12s solve into 120ms
        (default 100)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for the driven session (default: session_TIMESTAMP.json)
  -log string
        Log file for simulator output (default: simulate_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Drive a short session with defaults
  go run cmd/simulate/main.go

  # Drive a long session against a remote service
  go run cmd/simulate/main.go -solves 200 -url http://localhost:8080

  # Exercise the hold-to-start gate in real time
  go run cmd/simulate/main.go -mode hold -scale 1 -solves 5
`)
}
