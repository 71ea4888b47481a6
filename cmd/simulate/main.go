package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/klepsydra/internal/simulate"
)

// Default configuration constants.
const (
	defaultNumSolves  = 25
	defaultTimeScale  = 100
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numSolves  = flag.Int("solves", defaultNumSolves, "Number of solves to drive")
		mode       = flag.String("mode", simulate.ModeToggle, "Input mode: toggle or hold")
		timeScale  = flag.Int("scale", defaultTimeScale, "Time compression divisor for planned durations")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for the driven session (default: session_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulator output (default: simulate_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	// Setup logging
	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create simulator configuration
	config := &simulate.Config{
		BaseURL:    *baseURL,
		NumSolves:  *numSolves,
		Mode:       *mode,
		TimeScale:  *timeScale,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the simulation
	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
