package efficiency

import (
	"fmt"
	"strings"
)

// Quality is the reviewer's rating of a completed subtask.
type Quality int

const (
	NeedsImprovement Quality = iota + 1
	Satisfactory
	Good
	Excellent
)

// fallbackValue is the base score of a Quality outside the table.
// ParseQuality never yields one.
const fallbackValue = 50

var qualityTable = map[Quality]struct {
	label string
	value float64
}{
	NeedsImprovement: {"needs improvement", 40},
	Satisfactory:     {"satisfactory", 60},
	Good:             {"good", 80},
	Excellent:        {"excellent", 100},
}

// Qualities lists the ratings in ascending order.
func Qualities() []Quality {
	return []Quality{NeedsImprovement, Satisfactory, Good, Excellent}
}

// ParseQuality maps a rating label to a Quality. Matching ignores case and
// surrounding whitespace.
func ParseQuality(s string) (Quality, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	if label == "" {
		return 0, fmt.Errorf("quality of work must be provided")
	}
	for q, row := range qualityTable {
		if row.label == label {
			return q, nil
		}
	}
	return 0, fmt.Errorf("invalid quality of work rating %q: must be one of excellent, good, satisfactory, needs improvement", s)
}

// Value is the base score the rating contributes before weighting.
func (q Quality) Value() float64 {
	if row, ok := qualityTable[q]; ok {
		return row.value
	}
	return fallbackValue
}

func (q Quality) String() string {
	if row, ok := qualityTable[q]; ok {
		return row.label
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// Valid reports whether q is one of the four ratings.
func (q Quality) Valid() bool {
	_, ok := qualityTable[q]
	return ok
}
