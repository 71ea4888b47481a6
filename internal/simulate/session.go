package simulate

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/klepsydra/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	solverTypeDivisor  = 6
)

// Constants for solve duration generation (milliseconds).
const (
	steadySolveMin    = 10_000.0
	steadySolveRange  = 5_000.0
	fastSolveMin      = 7_000.0
	fastSolveRange    = 2_000.0
	slowSolveMin      = 15_000.0
	slowSolveRange    = 10_000.0
	luckySolveMin     = 4_000.0
	luckySolveRange   = 2_000.0
	lockupSolveMin    = 20_000.0
	lockupSolveRange  = 15_000.0
	inspectionMin     = 2_000.0
	inspectionRange   = 10_000.0
	longInspectionMin = 13_000.0
	longInspectionRng = 4_000.0
)

// Constants for solver profile cases.
const (
	caseSteadySolver   = 0
	caseFastSolver     = 1
	caseSlowSolver     = 2
	caseLuckySolve     = 3
	caseLockup         = 4
	caseLongInspection = 5
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// planSession creates the solve plans the simulator will drive.
func planSession(ctx context.Context, config *Config, stats *Stats) []SolvePlan {
	logger.Get().Info(ctx, "planning solve session",
		logger.Int("numSolves", config.NumSolves),
		logger.Int("timeScale", config.TimeScale))

	plans := make([]SolvePlan, config.NumSolves)
	for i := range plans {
		plans[i] = planSingleSolve(i)
	}

	stats.SolvesPlanned = len(plans)
	return plans
}

// planSingleSolve creates one solve plan with a varied duration profile.
func planSingleSolve(index int) SolvePlan {
	inspection := inspectionMin + getRandomFloat()*inspectionRange
	solve := generateVariedSolveMS()

	// A handful of solves inspect dangerously close to the limit to
	// exercise overage penalties on uncompressed runs.
	profile, _ := rand.Int(rand.Reader, big.NewInt(solverTypeDivisor))
	if profile.Int64() == caseLongInspection {
		inspection = longInspectionMin + getRandomFloat()*longInspectionRng
	}

	return SolvePlan{
		Index:        index,
		InspectionMS: int64(inspection),
		SolveMS:      int64(solve),
	}
}

// generateVariedSolveMS creates a solve duration with varied distribution.
func generateVariedSolveMS() float64 {
	profile, _ := rand.Int(rand.Reader, big.NewInt(solverTypeDivisor))
	switch profile.Int64() {
	case caseSteadySolver:
		// Steady solves (10s - 15s) - most common
		return steadySolveMin + getRandomFloat()*steadySolveRange
	case caseFastSolver:
		// Fast solves (7s - 9s)
		return fastSolveMin + getRandomFloat()*fastSolveRange
	case caseSlowSolver:
		// Slow solves (15s - 25s)
		return slowSolveMin + getRandomFloat()*slowSolveRange
	case caseLuckySolve:
		// Lucky solves (4s - 6s) - rare
		return luckySolveMin + getRandomFloat()*luckySolveRange
	case caseLockup:
		// Lockups (20s - 35s)
		return lockupSolveMin + getRandomFloat()*lockupSolveRange
	default:
		return steadySolveMin + getRandomFloat()*steadySolveRange
	}
}

// scaled compresses a planned duration by the configured time scale.
func scaled(ms int64, scale int) time.Duration {
	if scale <= 1 {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(ms/int64(scale)) * time.Millisecond
}

// newEventID builds a unique event identifier for one input edge.
func newEventID(solve int, edge string) string {
	return "sim_" + strconv.Itoa(solve) + "_" + edge + "_" + uuid.NewString()
}
