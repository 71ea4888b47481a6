package simulate

import "time"

// Config holds configuration for the session simulator.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumSolves  int           // Number of solves to drive
	Mode       string        // Input mode: "toggle" or "hold"
	TimeScale  int           // Divisor applied to realistic durations
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for the driven session
	LogFile    string        // Log file for simulator output
	Verbose    bool          // Enable verbose logging
}

// Event is the wire body for POST /events.
type Event struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	At      int64  `json:"at,omitempty"`
}

// AckResponse is the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// SolvePlan describes one simulated attempt before it is driven.
type SolvePlan struct {
	Index        int   `json:"index"`
	InspectionMS int64 `json:"inspection_ms"`
	SolveMS      int64 `json:"solve_ms"`
}

// Stats holds simulator statistics.
type Stats struct {
	SolvesPlanned    int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	AttemptsRecorded int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
