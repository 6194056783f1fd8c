package main

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SyntheticProducesArchive(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.archive")
	var stdout, stderr bytes.Buffer

	code := run([]string{"--synthetic", "--output", out, "--centroid", "1-2"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Empty(t, stderr.String())

	db, err := sql.Open("sqlite", out)
	require.NoError(t, err)
	defer db.Close()

	var spectrumCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM spectrum`).Scan(&spectrumCount))
	assert.Equal(t, 6, spectrumCount)
}

func TestRun_MissingInputAndSyntheticIsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{}, &stdout, &stderr)
	assert.Equal(t, exitUsageError, code)
	assert.Contains(t, stderr.String(), "--input is required")
}

func TestRun_UnknownFlagIsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--nonexistent-flag"}, &stdout, &stderr)
	assert.Equal(t, exitUsageError, code)
}

func TestRun_InputWithoutSyntheticIsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--input", "run.raw"}, &stdout, &stderr)
	assert.Equal(t, exitUsageError, code)
	assert.Contains(t, stderr.String(), "does not include")
}

func TestRun_BadVendorIsUsageError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.archive")
	var stdout, stderr bytes.Buffer
	code := run([]string{"--synthetic", "--output", out, "--vendor", "bogus"}, &stdout, &stderr)
	assert.Equal(t, exitUsageError, code)
	assert.Contains(t, stderr.String(), "unknown --vendor")
}

func TestRun_VersionFlagPrintsAndExits(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--version"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "msconvert")
}

func TestRun_HelpExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--help"}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
}
