package fetchtool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublishedMarker(t *testing.T) {
	ts, err := parsePublishedMarker("___@1714903200@___\n")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1714903200, 0).UTC(), ts)

	// Marker surrounded by other tool chatter still parses.
	ts, err = parsePublishedMarker("some noise ___@1714903200@___ trailing")
	require.NoError(t, err)
	assert.Equal(t, int64(1714903200), ts.Unix())
}

func TestParsePublishedMarker_Invalid(t *testing.T) {
	cases := []string{
		"",
		"no marker here",
		"___@@___",
		"___@NA@___",
	}
	for _, out := range cases {
		_, err := parsePublishedMarker(out)
		assert.Error(t, err, "input %q", out)
	}
}

func TestFindOutputFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "download.webm"), []byte("x"), 0o600))

	path, err := findOutputFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "download.webm"), path)
}

func TestFindOutputFile_Missing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))

	_, err := findOutputFile(dir)
	assert.Error(t, err)
}
