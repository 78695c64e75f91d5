// Package stats folds classified log lines into per-server counters and
// persists the result.
package stats

import (
	"github.com/oicur0t/logstat/internal/rules"
	"github.com/oicur0t/logstat/pkg/models"
)

// Event kinds that feed a counter. Other kinds are classified but not counted.
const (
	KindError   = "ERROR"
	KindWarning = "WARN"
)

// ServerField is the capture group name that identifies a server
const ServerField = "server"

// Tally describes how the lines of one pass were used
type Tally struct {
	Read    int
	Matched int
	Counted int
}

// Accumulate classifies every line and returns the counters per server
func Accumulate(lines []string, rs *rules.RuleSet) models.ServerStats {
	stats, _ := Fold(lines, rs)
	return stats
}

// Fold is Accumulate plus a tally of how many lines were read, matched a
// rule, and carried a server identity.
func Fold(lines []string, rs *rules.RuleSet) (models.ServerStats, Tally) {
	stats := make(models.ServerStats)
	tally := Tally{Read: len(lines)}

	for _, line := range lines {
		match, ok := rs.Classify(line)
		if !ok {
			continue
		}
		tally.Matched++

		server := match.Fields[ServerField]
		if server == "" {
			continue
		}
		tally.Counted++

		counters := stats[server]
		switch match.Kind {
		case KindError:
			counters.Errors++
		case KindWarning:
			counters.Warnings++
		}
		stats[server] = counters
	}

	return stats, tally
}

// Merge returns the counter-wise sum of a and b. Neither input is modified.
func Merge(a, b models.ServerStats) models.ServerStats {
	merged := make(models.ServerStats, len(a)+len(b))
	for server, c := range a {
		merged[server] = c
	}
	for server, c := range b {
		sum := merged[server]
		sum.Errors += c.Errors
		sum.Warnings += c.Warnings
		merged[server] = sum
	}
	return merged
}
