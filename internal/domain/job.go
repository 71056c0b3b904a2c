package domain

import "fmt"

// Job is the closed set of work items the background worker executes.
// Each variant carries exactly the data its handler needs; a job value is
// consumed once and dropped, never mutated.
type Job interface {
	// Kind returns a short tag for logs and metrics.
	Kind() string
}

// DownloadJob instructs the worker to download the single video at URL.
// Attempt starts at 1 and is incremented by Retry on resubmission.
type DownloadJob struct {
	URL     string
	Attempt int
}

// NewDownload returns a first-attempt download job for url.
func NewDownload(url string) DownloadJob {
	return DownloadJob{URL: url, Attempt: 1}
}

func (DownloadJob) Kind() string { return "download" }

// Retry returns a fresh job for the next attempt, or ErrRetriesExhausted
// once the attempt ceiling has been reached. A retried job is a new value;
// the URL never changes.
func (j DownloadJob) Retry(maxAttempts int) (DownloadJob, error) {
	if j.Attempt >= maxAttempts {
		return DownloadJob{}, fmt.Errorf("%w: tried %d times to download %s", ErrRetriesExhausted, j.Attempt, j.URL)
	}
	return DownloadJob{URL: j.URL, Attempt: j.Attempt + 1}, nil
}

// FollowJob instructs the worker to initialize tracking for a newly
// registered channel and backfill its DownloadAsOf most recent videos.
type FollowJob struct {
	FeedURL      string
	DownloadAsOf int
}

func (FollowJob) Kind() string { return "follow" }

// CheckJob instructs the worker to poll an already-tracked channel for
// videos published since it was last checked.
type CheckJob struct {
	FeedURL string
}

func (CheckJob) Kind() string { return "check" }
