package worker

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"github.com/numbleroot/autotube/internal/domain"
	"github.com/numbleroot/autotube/internal/fetchtool"
)

// Registry is the persistent channel registry as seen by job handlers.
// Each call is a single atomic read or write.
type Registry interface {
	GetLastChecked(ctx context.Context, feedURL string) (*time.Time, error)
	SetLastChecked(ctx context.Context, feedURL string, ts time.Time) error
}

// FeedLister derives video URL sets from a channel's feed, fetching a
// fresh copy per call.
type FeedLister interface {
	TopN(ctx context.Context, feedURL string, n int) ([]string, error)
	Since(ctx context.Context, feedURL string, asOf time.Time) ([]string, error)
}

// Downloader is the external acquisition tool. It writes exactly one
// output file into workDir on success and is safe to re-invoke in a fresh
// working directory.
type Downloader interface {
	Fetch(ctx context.Context, videoURL, workDir string) (*fetchtool.Result, error)
}

// JobSubmitter is the send side of the job queue, used for retry
// resubmission and per-video download fan-out.
type JobSubmitter interface {
	Submit(ctx context.Context, job domain.Job) error
}

// EventPublisher announces archived videos to interested consumers.
// Optional; a nil publisher disables events.
type EventPublisher interface {
	PublishArchived(ctx context.Context, video domain.ArchivedVideo) error
}
