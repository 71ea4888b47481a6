// Package scramble supplies opaque scramble notation strings for
// attempts. Scramble content is irrelevant to timing and statistics
// correctness; it is attached to attempts for display only.
package scramble

import (
	"context"
	"math/rand"
	"strings"
	"sync"
)

// Provider supplies one scramble per attempt.
type Provider interface {
	// Next returns the scramble for the next attempt, honoring ctx for
	// cancellation.
	Next(ctx context.Context) (string, error)
}

// Default generator configuration constants.
const (
	defaultLength = 20
	defaultSeed   = 42
)

var faces = []string{"U", "D", "R", "L", "F", "B"}

// axisOf groups opposite faces; consecutive moves on the same axis in
// the same face are avoided.
func axisOf(face string) int {
	switch face {
	case "U", "D":
		return 0
	case "R", "L":
		return 1
	default:
		return 2
	}
}

var suffixes = []string{"", "'", "2"}

// Option applies a configuration option to the random-move provider.
type Option func(*randomMoveProvider)

// WithLength sets the number of moves per scramble.
func WithLength(n int) Option {
	return func(p *randomMoveProvider) {
		if n > 0 {
			p.length = n
		}
	}
}

// WithSeed seeds the generator for reproducible sequences.
func WithSeed(seed int64) Option {
	return func(p *randomMoveProvider) {
		p.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // scrambles are not security material
	}
}

// randomMoveProvider generates fixed-length random-move sequences in
// standard face-turn notation, never repeating a face back to back and
// never following a move with its opposite-face counterpart twice in a
// row on the same axis.
type randomMoveProvider struct {
	mu     sync.Mutex
	rng    *rand.Rand
	length int
}

// NewRandomMoveProvider creates a Provider with configuration options.
func NewRandomMoveProvider(opts ...Option) Provider {
	p := &randomMoveProvider{
		length: defaultLength,
		rng:    rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // deterministic default for reproducibility
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *randomMoveProvider) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	moves := make([]string, 0, p.length)
	prevFace := ""
	prevAxis := -1
	sameAxisRun := 0
	for len(moves) < p.length {
		face := faces[p.rng.Intn(len(faces))]
		if face == prevFace {
			continue
		}
		axis := axisOf(face)
		if axis == prevAxis {
			// U D U would commute back; allow at most two moves per axis.
			if sameAxisRun >= 2 {
				continue
			}
			sameAxisRun++
		} else {
			sameAxisRun = 1
		}
		prevFace = face
		prevAxis = axis
		moves = append(moves, face+suffixes[p.rng.Intn(len(suffixes))])
	}
	return strings.Join(moves, " "), nil
}
