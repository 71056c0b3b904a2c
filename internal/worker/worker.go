// Package worker drains the job queue and executes each job in its own
// goroutine: video downloads via the external tool, channel follows and
// periodic checks via the feed and the registry.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/numbleroot/autotube/internal/domain"
	"github.com/numbleroot/autotube/internal/metrics"
)

// Config carries the immutable settings every handler invocation needs.
type Config struct {
	VideoDir    string
	TmpDir      string
	MaxAttempts int
}

type Worker struct {
	cfg       Config
	jobs      <-chan domain.Job
	submit    JobSubmitter
	registry  Registry
	feeds     FeedLister
	tool      Downloader
	events    EventPublisher
	collector *metrics.Collector
	logger    *slog.Logger
}

func New(
	cfg Config,
	jobs <-chan domain.Job,
	submit JobSubmitter,
	registry Registry,
	feeds FeedLister,
	tool Downloader,
	events EventPublisher,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		cfg:       cfg,
		jobs:      jobs,
		submit:    submit,
		registry:  registry,
		feeds:     feeds,
		tool:      tool,
		events:    events,
		collector: collector,
		logger:    logger,
	}
}

// Run drains the queue until ctx is cancelled or the queue is closed.
// Every dequeued job runs in its own goroutine; a job's failure never
// stops the receive loop. On shutdown no further jobs are dequeued, but
// in-flight handlers are waited for before Run returns.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", "max_attempts", w.cfg.MaxAttempts)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "reason", "shutdown")
			return
		case job, ok := <-w.jobs:
			if !ok {
				w.logger.Info("worker stopping", "reason", "queue closed")
				return
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				w.dispatch(ctx, job)
			}()
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, job domain.Job) {
	var err error
	switch j := job.(type) {
	case domain.DownloadJob:
		err = w.handleDownload(ctx, j)
	case domain.FollowJob:
		err = w.handleFollow(ctx, j)
	case domain.CheckJob:
		err = w.handleCheck(ctx, j)
	default:
		err = fmt.Errorf("unknown job type %T", job)
	}

	if err != nil {
		w.collector.RecordJobFailed(job.Kind())
		w.logger.Warn("job failed", "kind", job.Kind(), "error", err)
		return
	}
	w.collector.RecordJobCompleted(job.Kind())
}

// handleDownload fetches the single video in job into a fresh working
// directory and moves the artifact to its final location. On any failure
// the job is resubmitted with attempt+1 until the ceiling; the final
// failure is terminal and only logged, the original caller already got its
// acknowledgment at enqueue time.
func (w *Worker) handleDownload(ctx context.Context, job domain.DownloadJob) error {
	log := w.logger.With("video_url", job.URL, "attempt", job.Attempt)

	// An in-flight download finishes even during shutdown; only queue
	// submission observes cancellation.
	workCtx := context.WithoutCancel(ctx)

	// Microsecond resolution keeps concurrent attempts from colliding on
	// the same working directory name.
	stamp := strconv.FormatInt(time.Now().UnixMicro(), 10)
	workDir := filepath.Join(w.cfg.TmpDir, stamp)

	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return fmt.Errorf("create working directory %s: %w", workDir, err)
	}
	defer os.RemoveAll(workDir)

	log.Info("starting download attempt", "max_attempts", w.cfg.MaxAttempts)

	result, err := w.tool.Fetch(workCtx, job.URL, workDir)
	if err != nil {
		return w.retryDownload(ctx, job, log, err)
	}

	// The final name pairs publish time with the attempt stamp: useful
	// default sorting in the file system, and collisions stay improbable.
	finalName := fmt.Sprintf("%s_%s%s",
		result.Published.UTC().Format("2006-01-02-15-04-05"),
		stamp,
		filepath.Ext(result.OutputPath),
	)
	finalPath := filepath.Join(w.cfg.VideoDir, finalName)

	if err := os.Rename(result.OutputPath, finalPath); err != nil {
		return w.retryDownload(ctx, job, log, fmt.Errorf("move to final location: %w", err))
	}

	w.collector.RecordVideoArchived()

	if w.events != nil {
		event := domain.ArchivedVideo{
			URL:       job.URL,
			Path:      finalPath,
			Published: result.Published,
			Attempt:   job.Attempt,
		}
		if err := w.events.PublishArchived(workCtx, event); err != nil {
			log.Warn("publishing archived event failed", "error", err)
		}
	}

	log.Info("download completed", "path", finalPath)
	return nil
}

// retryDownload resubmits the failed job with an incremented attempt
// counter, or reports the terminal exhaustion error once the ceiling is
// reached.
func (w *Worker) retryDownload(ctx context.Context, job domain.DownloadJob, log *slog.Logger, cause error) error {
	retried, err := job.Retry(w.cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("%w (last attempt: %v)", err, cause)
	}

	w.collector.RecordDownloadRetry()
	log.Warn("download attempt failed, resubmitting", "error", cause, "next_attempt", retried.Attempt)

	if err := w.submit.Submit(ctx, retried); err != nil {
		return fmt.Errorf("resubmit download for %s: %w", job.URL, err)
	}
	return fmt.Errorf("download attempt %d failed: %w", job.Attempt, cause)
}

// handleFollow backfills the channel's most recent videos and then
// initializes last_checked, which makes the channel visible to the
// trigger. The backfilled videos bypass the incremental check entirely.
func (w *Worker) handleFollow(ctx context.Context, job domain.FollowJob) error {
	log := w.logger.With("feed_url", job.FeedURL)
	workCtx := context.WithoutCancel(ctx)

	// Captured before the feed is consulted so nothing published while
	// the backfill runs can slip past the next check.
	now := time.Now().UTC()

	urls, err := w.feeds.TopN(workCtx, job.FeedURL, job.DownloadAsOf)
	if err != nil {
		return fmt.Errorf("list recent videos: %w", err)
	}

	for _, url := range urls {
		if err := w.submit.Submit(ctx, domain.NewDownload(url)); err != nil {
			return fmt.Errorf("submit backfill download for %s: %w", url, err)
		}
	}

	if err := w.registry.SetLastChecked(workCtx, job.FeedURL, now); err != nil {
		return fmt.Errorf("initialize last_checked: %w", err)
	}

	log.Info("follow completed", "backfilled", len(urls))
	return nil
}

// handleCheck polls the channel for videos published at or after its
// last_checked timestamp and advances that timestamp to the time captured
// at job start. Anything published between read and write surfaces on a
// later tick; a retried check may emit duplicates, which the download
// naming scheme tolerates.
func (w *Worker) handleCheck(ctx context.Context, job domain.CheckJob) error {
	log := w.logger.With("feed_url", job.FeedURL)
	workCtx := context.WithoutCancel(ctx)

	now := time.Now().UTC()

	lastChecked, err := w.registry.GetLastChecked(workCtx, job.FeedURL)
	if err != nil {
		return fmt.Errorf("read last_checked: %w", err)
	}
	if lastChecked == nil {
		// The trigger never selects uninitialized channels; hitting this
		// means the registry was edited out from under us.
		return fmt.Errorf("%w: %s", domain.ErrNeverChecked, job.FeedURL)
	}

	urls, err := w.feeds.Since(workCtx, job.FeedURL, *lastChecked)
	if err != nil {
		return fmt.Errorf("list videos since %s: %w", lastChecked, err)
	}

	for _, url := range urls {
		if err := w.submit.Submit(ctx, domain.NewDownload(url)); err != nil {
			return fmt.Errorf("submit download for %s: %w", url, err)
		}
	}

	if err := w.registry.SetLastChecked(workCtx, job.FeedURL, now); err != nil {
		return fmt.Errorf("advance last_checked: %w", err)
	}

	log.Info("check completed", "new_videos", len(urls))
	return nil
}
