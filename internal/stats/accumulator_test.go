package stats

import (
	"testing"

	"github.com/oicur0t/logstat/internal/rules"
	"github.com/oicur0t/logstat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Parse([]byte(`{
		"ERROR": {"pattern": "ERROR server=(\\w+)", "groups": ["server"]},
		"WARN":  {"pattern": "WARN server=(\\w+)",  "groups": ["server"]}
	}`), rules.FormatJSON)
	require.NoError(t, err)
	return rs
}

func TestAccumulate_Scenario(t *testing.T) {
	lines := []string{
		"2024-01-01 ERROR server=node1 disk full",
		"2024-01-01 WARN server=node1 high latency",
		"2024-01-01 ERROR server=node2 timeout",
		"2024-01-01 INFO server=node1 heartbeat",
	}

	stats, tally := Fold(lines, scenarioRules(t))

	assert.Equal(t, models.ServerStats{
		"node1": {Errors: 1, Warnings: 1},
		"node2": {Errors: 1, Warnings: 0},
	}, stats)
	assert.Equal(t, Tally{Read: 4, Matched: 3, Counted: 3}, tally)
}

func TestAccumulate_EmptyInput(t *testing.T) {
	stats := Accumulate(nil, scenarioRules(t))
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

func TestAccumulate_MissingServerIsDropped(t *testing.T) {
	rs, err := rules.Parse([]byte(`{
		"ERROR": {"pattern": "ERROR(?: server=(\\w*))?", "groups": ["server"]},
		"WARN":  {"pattern": "WARN host=(\\w+)", "groups": ["host"]}
	}`), rules.FormatJSON)
	require.NoError(t, err)

	lines := []string{
		"ERROR disk full",
		"ERROR server= empty",
		"WARN host=node9 renamed group",
	}

	stats, tally := Fold(lines, rs)
	assert.Empty(t, stats)
	assert.Equal(t, Tally{Read: 3, Matched: 3, Counted: 0}, tally)
}

func TestAccumulate_UncountedKindCreatesEntry(t *testing.T) {
	rs, err := rules.Parse([]byte(`{
		"INFO": {"pattern": "INFO server=(\\w+)", "groups": ["server"]}
	}`), rules.FormatJSON)
	require.NoError(t, err)

	stats := Accumulate([]string{"INFO server=node1 heartbeat"}, rs)
	assert.Equal(t, models.ServerStats{"node1": {}}, stats)
}

func TestAccumulate_ConcatenationIsMerge(t *testing.T) {
	rs := scenarioRules(t)
	a := []string{
		"ERROR server=node1",
		"WARN server=node2",
		"ERROR server=node1",
	}
	b := []string{
		"WARN server=node1",
		"ERROR server=node3",
		"garbage",
	}

	whole := Accumulate(append(append([]string{}, a...), b...), rs)
	assert.Equal(t, whole, Merge(Accumulate(a, rs), Accumulate(b, rs)))
	assert.Equal(t, whole, Merge(Accumulate(b, rs), Accumulate(a, rs)))
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	a := models.ServerStats{"node1": {Errors: 1}}
	b := models.ServerStats{"node1": {Warnings: 2}, "node2": {Errors: 3}}

	merged := Merge(a, b)

	assert.Equal(t, models.ServerStats{
		"node1": {Errors: 1, Warnings: 2},
		"node2": {Errors: 3},
	}, merged)
	assert.Equal(t, models.ServerStats{"node1": {Errors: 1}}, a)
}
