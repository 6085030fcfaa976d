// Package efficiency converts a completed subtask and its assignee's history into
// a bounded [0,100] score, and folds that score into the assignee's running average.
//
// Both functions are pure: callers supply the clock reading and every counter.
package efficiency

import (
	"math"
	"time"

	"staff-appraisal/pkg/apperr"
)

// Component weights. They sum to 1 across quality, duration, workload and history.
const (
	qualityWeight   = 0.30
	durationWeight  = 0.15
	workloadWeight  = 0.15
	completedWeight = 0.40

	// penaltyScale lifts the 0..1 penalty sub-scale onto the 100-point score.
	penaltyScale = 100

	// firstScoreCeiling caps the overall efficiency of a staff member's first
	// scored subtask.
	firstScoreCeiling = 70

	minOverallWeight    = 0.30
	maxConsistencyBonus = 5
)

// Input is everything SubtaskEfficiency needs. Counts are read from the
// assignee's record before the completion is applied.
type Input struct {
	Quality             Quality
	CreatedAt           time.Time
	Now                 time.Time
	Workload            int
	PendingCount        int
	ReworkCount         int
	TasksCompletedCount int
}

// Breakdown exposes the weighted components of a score.
type Breakdown struct {
	Quality   float64 `json:"quality"`
	Duration  float64 `json:"duration"`
	Workload  float64 `json:"workload"`
	Completed float64 `json:"completed"`
	Penalty   float64 `json:"penalty"`
	Score     int     `json:"score"`
}

// SubtaskEfficiency scores one completed subtask.
func SubtaskEfficiency(in Input) (int, error) {
	b, err := Explain(in)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Explain computes the score together with its components.
func Explain(in Input) (Breakdown, error) {
	const op = "compute subtask efficiency"
	switch {
	case in.CreatedAt.IsZero():
		return Breakdown{}, apperr.Computation(op, "created_at is not set")
	case in.Workload < 0:
		return Breakdown{}, apperr.Computation(op, "workload %d is negative", in.Workload)
	case in.PendingCount < 0:
		return Breakdown{}, apperr.Computation(op, "pending count %d is negative", in.PendingCount)
	case in.ReworkCount < 0:
		return Breakdown{}, apperr.Computation(op, "rework count %d is negative", in.ReworkCount)
	case in.TasksCompletedCount < 0:
		return Breakdown{}, apperr.Computation(op, "completed count %d is negative", in.TasksCompletedCount)
	}

	var b Breakdown
	b.Quality = in.Quality.Value() * qualityWeight

	days := math.Max(1, math.Floor(in.Now.Sub(in.CreatedAt).Hours()/24))
	b.Duration = math.Min(100, 100/math.Log2(days+1)) * durationWeight

	b.Workload = math.Min(100, 100*math.Log2(float64(in.Workload)+1)/5) * workloadWeight
	b.Completed = CompletedTasksScore(in.TasksCompletedCount) * completedWeight

	pendingPenalty := math.Min(10, float64(in.PendingCount)*2) * 0.10
	reworkPenalty := math.Min(10, float64(in.ReworkCount)*5) * 0.10
	b.Penalty = (pendingPenalty + reworkPenalty) * penaltyScale

	total := b.Quality + b.Duration + b.Workload + b.Completed - b.Penalty
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return Breakdown{}, apperr.Computation(op, "score is not finite")
	}
	b.Score = int(math.Round(clamp(total, 0, 100)))
	return b, nil
}

// CompletedTasksScore rewards a track record with diminishing returns:
// 0 for no history, 60 for one completed task, approaching 100.
func CompletedTasksScore(n int) float64 {
	if n <= 0 {
		return 0
	}
	scaled := float64(n-1) / 10
	return math.Min(100, 20+80*sigmoid(scaled))
}

// OverallEfficiency blends a new subtask score into the running average.
// newCompletedCount includes the subtask being scored.
func OverallEfficiency(current, newCompletedCount, previous int) (int, error) {
	const op = "compute overall efficiency"
	switch {
	case newCompletedCount < 1:
		return 0, apperr.Computation(op, "completed count %d must be at least 1", newCompletedCount)
	case current < 0 || current > 100:
		return 0, apperr.Computation(op, "current score %d outside [0,100]", current)
	case previous < 0 || previous > 100:
		return 0, apperr.Computation(op, "previous overall %d outside [0,100]", previous)
	}

	if previous == 0 {
		return min(firstScoreCeiling, current), nil
	}

	n := float64(newCompletedCount)
	weight := minOverallWeight + 0.70/math.Log10(n+2)
	blended := float64(current)*weight + float64(previous)*(1-weight)
	bonus := math.Min(maxConsistencyBonus, n/10)

	total := blended + bonus
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0, apperr.Computation(op, "overall score is not finite")
	}
	return int(clamp(math.Round(total), 0, 100)), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
