// Package fetchtool wraps the external yt-dlp binary that performs the
// actual network fetch of a single video.
package fetchtool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// outputBase is the fixed file stem yt-dlp writes into the working
// directory; the extension is chosen by the tool.
const outputBase = "download"

// Result describes one successful invocation: the single file the tool
// wrote and the video's publish time extracted from the tool's output.
type Result struct {
	OutputPath string
	Published  time.Time
}

// Runner invokes yt-dlp with a cleared environment inside a caller-provided
// working directory. Invocations are idempotent: a retry in a fresh
// directory is always safe.
type Runner struct {
	binary string
	logger *slog.Logger
}

func NewRunner(binary string, logger *slog.Logger) *Runner {
	return &Runner{binary: binary, logger: logger}
}

// Check probes that the tool binary is present and runnable. Called once
// at process start so a missing install fails fast instead of on the first
// download job.
func (r *Runner) Check(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, r.binary, "--version")
	cmd.Env = []string{}
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("no runnable %q executable found: %w", r.binary, err)
	}
	r.logger.Debug("download tool available", "binary", r.binary, "version", strings.TrimSpace(string(out)))
	return nil
}

// Fetch downloads videoURL into workDir. The tool prints the video's upload
// timestamp between fixed markers on stdout; both the marker and the single
// download.* output file must be present for the invocation to count as a
// success.
func (r *Runner) Fetch(ctx context.Context, videoURL, workDir string) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.binary,
		"--quiet",
		"--no-simulate",
		"--no-warnings",
		"--no-progress",
		"--print", "___@%(timestamp)s@___",
		"--embed-subs",
		"--embed-thumbnail",
		"--embed-metadata",
		"--output", filepath.Join(workDir, outputBase),
		videoURL,
	)
	cmd.Dir = workDir
	cmd.Env = []string{}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run %s for %s: %w", r.binary, videoURL, err)
	}

	published, err := parsePublishedMarker(string(out))
	if err != nil {
		return nil, err
	}

	outputPath, err := findOutputFile(workDir)
	if err != nil {
		return nil, err
	}

	return &Result{OutputPath: outputPath, Published: published}, nil
}

// parsePublishedMarker extracts the unix upload timestamp the tool was
// instructed to print between ___@ and @___.
func parsePublishedMarker(out string) (time.Time, error) {
	parts := strings.Split(strings.TrimFunc(out, func(c rune) bool { return c != '_' }), "@")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("no upload timestamp marker in tool output")
	}

	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse upload timestamp %q: %w", parts[1], err)
	}

	return time.Unix(unix, 0).UTC(), nil
}

// findOutputFile locates the one download.* file the tool wrote into dir.
func findOutputFile(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list files in %s: %w", dir, err)
	}

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if strings.HasPrefix(f.Name(), outputBase+".") {
			return filepath.Join(dir, f.Name()), nil
		}
	}

	return "", fmt.Errorf("no %s.* output file in %s", outputBase, dir)
}
