package main

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSimulatePrintsResult(t *testing.T) {
	out, err := execute(t,
		"--rows", "3", "--seats-per-row", "4", "--bookings", "20",
		"--min-delay", "0s", "--max-delay", "0s", "--cooldown", "5ms",
		"--seed", "42", "--movie", "Ran", "--log-level", "disabled",
	)
	require.NoError(t, err)

	var res model.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.RunID, 36)
	assert.Equal(t, "Ran", res.Movie)
	assert.Equal(t, 12, res.Total)
	assert.Equal(t, 12, res.Counts.Total())
	assert.Zero(t, res.Counts.Held)
	assert.Equal(t, 20, res.Attempts)
	assert.Equal(t, 20, res.Holds+res.NoSeat)
}

func TestSimulateRejectsBadInput(t *testing.T) {
	_, err := execute(t, "--rows", "0", "--log-level", "disabled")
	require.Error(t, err)

	_, err = execute(t, "--threshold", "0", "--log-level", "disabled")
	require.Error(t, err)

	_, err = execute(t, "--notifier", "carrier-pigeon", "--min-delay", "0s", "--max-delay", "0s", "--log-level", "disabled")
	require.ErrorContains(t, err, "unknown notifier")

	_, err = execute(t, "extra-arg")
	require.Error(t, err)
}

func TestSimulateTimeout(t *testing.T) {
	out, err := execute(t,
		"--rows", "1", "--seats-per-row", "1", "--bookings", "3",
		"--min-delay", "1h", "--max-delay", "1h", "--timeout", "20ms", "--log-level", "disabled",
	)
	require.ErrorContains(t, err, "cancelled")

	var res model.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Cancelled)
	assert.Equal(t, 1, res.Counts.Available)
}
