package suggest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

var (
	setPrefixRe = regexp.MustCompile(`(?i)^(\d+)x`)
	rangeRe     = regexp.MustCompile(`(\d+)-(\d+)`)
	singleRe    = regexp.MustCompile(`(\d+)`)
)

// maxRepsRange stands in for "as many reps as possible" targets.
var maxRepsRange = models.RepRange{Min: 1, Max: 100}

// ParseRepRange parses targets such as "3x18-20", "18-20", "10ea", "20"
// and "AMRAP/max". A leading set count is optional. A bare number sets
// both bounds; a target mentioning max reps becomes 1-100.
func ParseRepRange(target string) (models.RepRange, error) {
	var r models.RepRange

	cleaned := strings.TrimSpace(target)
	if m := setPrefixRe.FindStringSubmatch(cleaned); m != nil {
		r.Sets, _ = strconv.Atoi(m[1])
		cleaned = cleaned[len(m[0]):]
	}

	if m := rangeRe.FindStringSubmatch(cleaned); m != nil {
		r.Min, _ = strconv.Atoi(m[1])
		r.Max, _ = strconv.Atoi(m[2])
		if r.Min > r.Max {
			r.Min, r.Max = r.Max, r.Min
		}
	} else if m := singleRe.FindStringSubmatch(cleaned); m != nil {
		r.Min, _ = strconv.Atoi(m[1])
		r.Max = r.Min
	} else if strings.Contains(strings.ToLower(cleaned), "max") {
		r.Min, r.Max = maxRepsRange.Min, maxRepsRange.Max
	} else {
		return models.RepRange{}, fmt.Errorf("parsing target %q: %w", target, models.ErrInvalidTargetRange)
	}

	if r.Max == 0 {
		return models.RepRange{}, fmt.Errorf("target %q has no reps: %w", target, models.ErrInvalidTargetRange)
	}
	return r, nil
}

// formatRange renders r as "min-max".
func formatRange(r models.RepRange) string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}
