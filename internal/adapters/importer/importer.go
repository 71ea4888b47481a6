// Package importer converts third-party session exports into attempts.
//
// The accepted format is a JSON array of solve entries, each entry a
// four-element array:
//
//	[[penaltyCode, rawMs], scramble, comment, epochSec]
//
// where penaltyCode is 0 (clean), 2000 (plus-two) or -1 (DNF). The raw
// duration is the measured solve time before any penalty is applied.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/internal/domain/timer"
)

// Penalty codes used by the export format.
const (
	codeClean   = 0
	codePlusTwo = 2000
	codeDNF     = -1
)

// Entry is a single solve parsed from an export file.
type Entry struct {
	Penalty    penalty.Penalty
	RawMS      int64
	Scramble   string
	Comment    string
	RecordedAt int64 // unix milliseconds of the solve end
}

// Parse decodes an export document into entries, preserving file order.
func Parse(data []byte) ([]Entry, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedExport, err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, fields := range raw {
		e, err := parseEntry(fields)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseEntry(fields []json.RawMessage) (Entry, error) {
	if len(fields) != 4 {
		return Entry{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedExport, len(fields))
	}

	var timing [2]int64
	if err := json.Unmarshal(fields[0], &timing); err != nil {
		return Entry{}, fmt.Errorf("%w: timing pair: %w", ErrMalformedExport, err)
	}

	var e Entry
	switch timing[0] {
	case codeClean:
		e.Penalty = penalty.None
	case codePlusTwo:
		e.Penalty = penalty.Plus2
	case codeDNF:
		e.Penalty = penalty.DNF
	default:
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownPenaltyCode, timing[0])
	}

	e.RawMS = timing[1]
	if e.RawMS < 0 {
		return Entry{}, fmt.Errorf("%w: negative duration %d", ErrMalformedExport, e.RawMS)
	}

	if err := json.Unmarshal(fields[1], &e.Scramble); err != nil {
		return Entry{}, fmt.Errorf("%w: scramble: %w", ErrMalformedExport, err)
	}
	if err := json.Unmarshal(fields[2], &e.Comment); err != nil {
		return Entry{}, fmt.Errorf("%w: comment: %w", ErrMalformedExport, err)
	}

	var epochSec int64
	if err := json.Unmarshal(fields[3], &epochSec); err != nil {
		return Entry{}, fmt.Errorf("%w: timestamp: %w", ErrMalformedExport, err)
	}
	if epochSec < 0 {
		return Entry{}, fmt.Errorf("%w: negative timestamp %d", ErrMalformedExport, epochSec)
	}
	e.RecordedAt = epochSec * 1000

	return e, nil
}

// Fingerprint returns a stable identity for an entry so re-importing
// the same file cannot duplicate attempts.
func (e Entry) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%d|%s", e.Penalty, e.RawMS, e.RecordedAt, e.Scramble)
	return "import-" + hex.EncodeToString(h.Sum(nil))[:32]
}

// Attempt converts an entry into a stored attempt with the given ID.
// Imported solves carry no inspection record; the export penalty is
// applied as a manual penalty.
func (e Entry) Attempt(id string) model.Attempt {
	r := timer.Result{
		StartTS: e.RecordedAt - e.RawMS,
		EndTS:   e.RecordedAt,
		RawMS:   e.RawMS,
	}
	return model.Attempt{
		ID:          id,
		OrderingKey: e.RecordedAt,
		Scramble:    e.Scramble,
		Result:      r.WithManualPenalty(e.Penalty),
	}
}
