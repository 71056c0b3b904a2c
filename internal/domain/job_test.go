package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRetry_IncrementsAttempt(t *testing.T) {
	job := NewDownload("https://www.youtube.com/watch?v=0123456789a")
	assert.Equal(t, 1, job.Attempt)

	retried, err := job.Retry(3)
	require.NoError(t, err)
	assert.Equal(t, 2, retried.Attempt)
	assert.Equal(t, job.URL, retried.URL)

	// The original job value is untouched.
	assert.Equal(t, 1, job.Attempt)
}

func TestDownloadRetry_TerminalAtCeiling(t *testing.T) {
	job := DownloadJob{URL: "https://www.youtube.com/watch?v=0123456789a", Attempt: 3}

	_, err := job.Retry(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestDownloadRetry_FinalPermittedAttempt(t *testing.T) {
	job := DownloadJob{URL: "https://www.youtube.com/watch?v=0123456789a", Attempt: 2}

	retried, err := job.Retry(3)
	require.NoError(t, err)
	assert.Equal(t, 3, retried.Attempt)

	_, err = retried.Retry(3)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"often", "sometimes", "rarely"} {
		freq, err := ParseFrequency(valid)
		require.NoError(t, err)
		assert.Equal(t, Frequency(valid), freq)
	}

	for _, invalid := range []string{"", "never", "OFTEN", "hourly"} {
		_, err := ParseFrequency(invalid)
		assert.Error(t, err, "expected error for %q", invalid)
	}
}
