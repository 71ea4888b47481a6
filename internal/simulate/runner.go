package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/stats"
	"github.com/okian/klepsydra/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// holdPressDuration is how long the simulated press is held in hold
// mode before release; long enough to clear any sane hold-to-start
// threshold.
const holdPressDuration = 500 * time.Millisecond

// Run executes the complete session simulation.
func Run(ctx context.Context, config *Config) error {
	st := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting session simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("solves", config.NumSolves),
		logger.String("mode", config.Mode),
		logger.Int("timeScale", config.TimeScale),
		logger.String("timeout", config.Timeout.String()),
		logger.Any("verbose", config.Verbose))

	if config.Mode != ModeToggle && config.Mode != ModeHold {
		return fmt.Errorf("unknown mode %q; want %q or %q", config.Mode, ModeToggle, ModeHold)
	}

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Plan the session
	plans := planSession(ctx, config, st)

	// Step 3: Drive the solves against the live timer
	if err := driveSession(ctx, config, plans, st); err != nil {
		return fmt.Errorf("session drive failed: %w", err)
	}

	// Step 4: Wait for the dispatcher to drain
	logger.Get().Info(ctx, "waiting for events to be processed")
	time.Sleep(ProcessingDelay)

	// Step 5: Fetch the recorded history
	attempts, err := fetchAttempts(ctx, config, st)
	if err != nil {
		return fmt.Errorf("attempt retrieval failed: %w", err)
	}

	// Step 6: Fetch the trailing report
	trailing, err := fetchTrailing(ctx, config)
	if err != nil {
		return fmt.Errorf("trailing retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifySession(ctx, config, attempts, trailing); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Save the driven session to file
	if err := saveSessionToFile(ctx, config, plans, attempts); err != nil {
		logger.Get().Warn(ctx, "failed to save session to file", logger.Error(err))
	}

	// Final statistics
	st.EndTime = time.Now()
	st.Duration = st.EndTime.Sub(st.StartTime)

	displayFinalStats(st)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the endpoint serves Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// driveSession drives each planned solve against the live timer. Solves
// run strictly in sequence; the timer is a single state machine, so
// concurrent input would interleave attempts.
func driveSession(ctx context.Context, config *Config, plans []SolvePlan, st *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/events"

	for _, plan := range plans {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during session drive: %w", ctx.Err())
		default:
		}

		if err := driveSolve(ctx, config, client, url, plan, st); err != nil {
			return err
		}

		if config.Verbose {
			logger.Get().Info(ctx, "drove solve",
				logger.Int("index", plan.Index),
				logger.Int64("inspectionMS", plan.InspectionMS),
				logger.Int64("solveMS", plan.SolveMS))
		}
	}

	logger.Get().Info(ctx, "session drive completed",
		logger.Int("submitted", st.EventsSubmitted),
		logger.Int("accepted", st.EventsSuccessful),
		logger.Int("duplicate", st.EventsDuplicate),
		logger.Int("failed", st.EventsFailed))
	return nil
}

// driveSolve sends the input edges for one solve: enter inspection,
// start the timer, and stop it, sleeping the scaled plan durations in
// between.
func driveSolve(ctx context.Context, config *Config, client *HTTPClient, url string, plan SolvePlan, st *Stats) error {
	steps := []struct {
		edge  string
		sleep time.Duration
	}{
		{"inspect", scaled(plan.InspectionMS, config.TimeScale)},
		{"start", scaled(plan.SolveMS, config.TimeScale)},
		{"stop", 0},
	}

	for _, step := range steps {
		if err := sendEdge(ctx, config, client, url, plan.Index, step.edge, st); err != nil {
			return err
		}
		if step.sleep > 0 {
			time.Sleep(step.sleep)
		}
	}
	return nil
}

// sendEdge submits one logical input edge in the configured mode.
func sendEdge(ctx context.Context, config *Config, client *HTTPClient, url string, solve int, edge string, st *Stats) error {
	events := []Event{{EventID: newEventID(solve, edge), Kind: "toggle"}}
	if config.Mode == ModeHold {
		// A press/release pair: the release fires the toggle once the
		// press has been held past the hold-to-start threshold. A stop
		// takes effect on the press edge; the release only resets the
		// gate.
		events = []Event{
			{EventID: newEventID(solve, edge+"_press"), Kind: "press"},
			{EventID: newEventID(solve, edge+"_release"), Kind: "release"},
		}
	}

	for i, event := range events {
		if config.Mode == ModeHold && i == 1 {
			time.Sleep(holdPressDuration)
		}

		st.EventsSubmitted++
		switch sendEvent(ctx, client, url, event) {
		case "accepted":
			st.EventsSuccessful++
		case "duplicate":
			st.EventsDuplicate++
		default:
			st.EventsFailed++
			return fmt.Errorf("event submission failed for solve %d edge %s", solve, edge)
		}
	}
	return nil
}

// fetchAttempts retrieves the full recorded history, oldest first.
func fetchAttempts(ctx context.Context, config *Config, st *Stats) ([]model.Attempt, error) {
	logger.Get().Info(ctx, "fetching recorded attempts")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/attempts"

	var attempts []model.Attempt
	if err := getJSON(ctx, client, url, &attempts); err != nil {
		return nil, err
	}

	st.AttemptsRecorded = len(attempts)
	logger.Get().Info(ctx, "fetched attempts", logger.Int("count", len(attempts)))
	return attempts, nil
}

// fetchTrailing retrieves the trailing statistics report.
func fetchTrailing(ctx context.Context, config *Config) (stats.Trailing, error) {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/stats/trailing"

	var trailing stats.Trailing
	if err := getJSON(ctx, client, url, &trailing); err != nil {
		return stats.Trailing{}, err
	}
	return trailing, nil
}

// sessionDocument is the file layout written by saveSessionToFile.
type sessionDocument struct {
	Plans    []SolvePlan     `json:"plans"`
	Attempts []model.Attempt `json:"attempts"`
}

// saveSessionToFile saves the driven session to a JSON file.
func saveSessionToFile(ctx context.Context, config *Config, plans []SolvePlan, attempts []model.Attempt) error {
	if len(plans) == 0 {
		return fmt.Errorf("no session to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "session_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(sessionDocument{Plans: plans, Attempts: attempts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	logger.Get().Info(ctx, "session saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulator statistics.
func displayFinalStats(st *Stats) {
	var successRate, eventsPerSecond float64

	if st.EventsSubmitted > 0 {
		successRate = float64(st.EventsSuccessful) / float64(st.EventsSubmitted) * PercentageMultiplier
	}

	if st.Duration > 0 {
		eventsPerSecond = float64(st.EventsSubmitted) / st.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("solvesPlanned", st.SolvesPlanned),
		logger.Int("eventsSubmitted", st.EventsSubmitted),
		logger.Int("eventsSuccessful", st.EventsSuccessful),
		logger.Int("eventsDuplicate", st.EventsDuplicate),
		logger.Int("eventsFailed", st.EventsFailed),
		logger.Int("attemptsRecorded", st.AttemptsRecorded),
		logger.String("duration", st.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
