package simulate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const johnScenario = `
limit: 5
window: 1h
steps:
  - user: john
    event: failure
    repeat: 4
  - user: john
    event: check
  - user: john
    event: failure
  - user: john
    event: success
  - user: john
    event: failure
`

func TestParseScenario(t *testing.T) {
	t.Run("basic case", func(t *testing.T) {
		s, err := ParseScenario([]byte(johnScenario))
		require.NoError(t, err)

		assert.Equal(t, 5, s.Limit)
		assert.Equal(t, 1*time.Hour, s.Window)
		require.Len(t, s.Steps, 5)
		assert.Equal(t, Step{User: "john", Event: EventFailure, Repeat: 4}, s.Steps[0])
		assert.Equal(t, EventSuccess, s.Steps[3].Event)
	})

	t.Run("wait durations", func(t *testing.T) {
		s, err := ParseScenario([]byte("steps:\n  - event: wait\n    duration: 59m30s\n"))
		require.NoError(t, err)

		assert.Equal(t, 59*time.Minute+30*time.Second, s.Steps[0].Duration)
		assert.Zero(t, s.Limit)
		assert.Zero(t, s.Window)
	})

	tests := []struct {
		name     string
		scenario string
	}{
		{"not yaml", "steps: [[["},
		{"unknown field", "steps:\n  - user: a\n    event: failure\n    colour: red\n"},
		{"no steps", "limit: 3\n"},
		{"negative limit", "limit: -1\nsteps:\n  - event: check\n"},
		{"negative window", "window: -1h\nsteps:\n  - event: check\n"},
		{"unknown event", "steps:\n  - event: explode\n"},
		{"missing event", "steps:\n  - user: a\n"},
		{"wait without duration", "steps:\n  - event: wait\n"},
		{"negative repeat", "steps:\n  - event: failure\n    repeat: -2\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := ParseScenario([]byte(tc.scenario))
			assert.ErrorIs(t, err, ErrInvalidScenario)
			assert.Nil(t, s)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	t.Run("basic case", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "john.yaml")
		require.NoError(t, os.WriteFile(path, []byte(johnScenario), 0600))

		s, err := LoadScenario(path)
		require.NoError(t, err)
		assert.Len(t, s.Steps, 5)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestRun(t *testing.T) {
	t.Run("john", func(t *testing.T) {
		s, err := ParseScenario([]byte(johnScenario))
		require.NoError(t, err)

		results := Run(s)
		require.Len(t, results, 8)

		for i := range 4 {
			assert.Equal(t, 1, results[i].Step)
			assert.Equal(t, i+1, results[i].Failures)
			assert.False(t, results[i].Blocked)
		}

		assert.Equal(t, Result{Step: 2, User: "john", Event: EventCheck, Failures: 4}, results[4])
		assert.Equal(t, Result{Step: 3, User: "john", Event: EventFailure, Failures: 5, Blocked: true}, results[5])
		assert.Equal(t, Result{Step: 4, User: "john", Event: EventSuccess, Failures: 0}, results[6])
		assert.Equal(t, Result{Step: 5, User: "john", Event: EventFailure, Failures: 1}, results[7])
	})

	t.Run("waiting out the window", func(t *testing.T) {
		s := &Scenario{
			Limit:  2,
			Window: 10 * time.Minute,
			Steps: []Step{
				{User: "alice", Event: EventFailure, Repeat: 3},
				{Event: EventWait, Duration: 9 * time.Minute},
				{User: "alice", Event: EventCheck},
				{Event: EventWait, Duration: 1 * time.Minute},
				{User: "alice", Event: EventCheck},
				{User: "alice", Event: EventFailure},
			},
		}

		results := Run(s)
		require.Len(t, results, 8)

		assert.True(t, results[2].Blocked)
		assert.Equal(t, 3, results[2].Failures)

		assert.Equal(t, Result{Step: 2, Elapsed: 9 * time.Minute, Event: EventWait}, results[3])

		// reads don't move the window
		assert.Equal(t, 3, results[4].Failures)
		assert.True(t, results[4].Blocked)

		assert.Equal(t, 10*time.Minute, results[5].Elapsed)
		assert.Equal(t, 0, results[6].Failures)
		assert.False(t, results[6].Blocked)
		assert.Equal(t, 1, results[7].Failures)
	})

	t.Run("failures push the window out", func(t *testing.T) {
		s := &Scenario{
			Steps: []Step{
				{User: "bob", Event: EventFailure, Repeat: 5},
				{Event: EventWait, Duration: 50 * time.Minute},
				{User: "bob", Event: EventFailure},
				{Event: EventWait, Duration: 50 * time.Minute},
				{User: "bob", Event: EventCheck},
			},
		}

		results := Run(s)
		last := results[len(results)-1]
		assert.Equal(t, 6, last.Failures)
		assert.True(t, last.Blocked)
		assert.Equal(t, 100*time.Minute, last.Elapsed)
	})

	t.Run("users are independent", func(t *testing.T) {
		s := &Scenario{
			Limit: 1,
			Steps: []Step{
				{User: "a", Event: EventFailure},
				{User: "b", Event: EventCheck},
				{User: "A", Event: EventCheck},
			},
		}

		results := Run(s)
		assert.True(t, results[0].Blocked)
		assert.False(t, results[1].Blocked)
		assert.False(t, results[2].Blocked)
	})
}
