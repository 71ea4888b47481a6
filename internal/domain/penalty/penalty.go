// Package penalty defines competition penalties and how they combine.
package penalty

import "fmt"

// Penalty is a closed enumeration of attempt penalties.
type Penalty uint8

const (
	// None means the attempt stands as timed.
	None Penalty = iota
	// Plus2 adds a fixed 2000ms to the raw duration.
	Plus2
	// DNF invalidates the attempt's time entirely.
	DNF
)

// Plus2OffsetMS is the fixed duration a Plus2 penalty adds.
const Plus2OffsetMS int64 = 2000

// OverageWindowMS is how far past the inspection limit an attempt may
// start before the overage becomes a DNF instead of a Plus2.
const OverageWindowMS int64 = 2000

// String returns the canonical lowercase name of the penalty.
func (p Penalty) String() string {
	switch p {
	case Plus2:
		return "plus2"
	case DNF:
		return "dnf"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler so penalties serialize
// as their names rather than raw integers.
func (p Penalty) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Penalty) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse converts a penalty name to its Penalty value.
func Parse(s string) (Penalty, error) {
	switch s {
	case "none", "":
		return None, nil
	case "plus2", "+2":
		return Plus2, nil
	case "dnf":
		return DNF, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownPenalty, s)
}

// Combine merges two penalties by dominance: DNF > Plus2 > None.
// Penalties never accumulate; two Plus2 sources still yield a single
// Plus2. Combine is commutative and associative, so any number of
// penalty sources fold to the most severe one.
func Combine(a, b Penalty) Penalty {
	if a > b {
		return a
	}
	return b
}

// FromInspection derives the automatic penalty for an inspection that
// lasted elapsedMS against the configured limit: within the limit there
// is no penalty, up to OverageWindowMS past it a Plus2, beyond that a DNF.
func FromInspection(elapsedMS, limitMS int64) Penalty {
	switch {
	case elapsedMS <= limitMS:
		return None
	case elapsedMS <= limitMS+OverageWindowMS:
		return Plus2
	default:
		return DNF
	}
}
