// Package trigger runs one timer loop per polling cadence class and feeds
// check jobs for the eligible channels of that class into the job queue,
// staggered across the first half of each interval.
package trigger

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/numbleroot/autotube/internal/domain"
	"github.com/numbleroot/autotube/internal/metrics"
)

//go:generate mockgen -source=trigger.go -destination=mocks/mocks.go -package=mocks

// Registry lists the followed channels eligible for polling: those of the
// given cadence class whose initial follow has completed.
type Registry interface {
	ListInitializedByFrequency(ctx context.Context, freq domain.Frequency) ([]domain.Source, error)
}

// JobSubmitter is the send side of the job queue.
type JobSubmitter interface {
	Submit(ctx context.Context, job domain.Job) error
}

// Config maps each cadence class to its tick interval.
type Config struct {
	Often     time.Duration
	Sometimes time.Duration
	Rarely    time.Duration
}

func (c Config) interval(freq domain.Frequency) time.Duration {
	switch freq {
	case domain.FrequencyOften:
		return c.Often
	case domain.FrequencySometimes:
		return c.Sometimes
	default:
		return c.Rarely
	}
}

type Trigger struct {
	cfg       Config
	registry  Registry
	submit    JobSubmitter
	collector *metrics.Collector
	logger    *slog.Logger
}

func New(cfg Config, registry Registry, submit JobSubmitter, collector *metrics.Collector, logger *slog.Logger) *Trigger {
	return &Trigger{
		cfg:       cfg,
		registry:  registry,
		submit:    submit,
		collector: collector,
		logger:    logger,
	}
}

// Run starts one loop per cadence class and blocks until all of them have
// exited. A loop dying on a registry or queue failure does not affect its
// siblings.
func (t *Trigger) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, freq := range domain.Frequencies() {
		wg.Add(1)
		go func(freq domain.Frequency) {
			defer wg.Done()
			t.runFrequency(ctx, freq)
		}(freq)
	}
	wg.Wait()
}

func (t *Trigger) runFrequency(ctx context.Context, freq domain.Frequency) {
	interval := t.cfg.interval(freq)
	log := t.logger.With("frequency", string(freq))
	log.Info("trigger loop started", "interval", interval)

	// First poll runs right away; the ticker drives every one after.
	if !t.pollOnce(ctx, freq, interval, log) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("trigger loop stopped")
			return
		case <-ticker.C:
		}

		if !t.pollOnce(ctx, freq, interval, log) {
			return
		}
	}
}

// pollOnce runs a single polling pass for one cadence class. Returns false
// when the loop must exit: cancellation, a registry failure, or a queue
// send failure.
func (t *Trigger) pollOnce(ctx context.Context, freq domain.Frequency, interval time.Duration, log *slog.Logger) bool {
	log.Debug("trigger tick")

	sources, err := t.registry.ListInitializedByFrequency(ctx, freq)
	if err != nil {
		log.Warn("listing eligible channels failed, trigger loop exiting", "error", err)
		return false
	}
	if len(sources) == 0 {
		log.Debug("no initialized channels for this frequency yet")
		return true
	}

	pauses := planBatch(sources, interval)

	for i, src := range sources {
		if err := t.submit.Submit(ctx, domain.CheckJob{FeedURL: src.FeedURL}); err != nil {
			log.Warn("submitting check job failed, trigger loop exiting", "error", err)
			return false
		}
		t.collector.RecordCheckEmitted()

		// Pause between emissions only, never after the last one.
		if i == len(sources)-1 {
			break
		}
		select {
		case <-ctx.Done():
			log.Info("trigger loop stopped")
			return false
		case <-time.After(pauses[i]):
		}
	}

	return true
}

// planBatch shuffles the batch in place and returns the jittered pauses
// between check emissions. All randomness is confined to this synchronous
// helper; the emission loop only sees precomputed durations.
//
// Emissions are packed into the first half of the interval: with n
// channels, step = interval / (2n), and each pause is step plus a jitter
// sampled uniformly from ±step/2, floored to whole seconds. A pause can
// never come out negative, but the clamp guards the floating point edge.
func planBatch(sources []domain.Source, interval time.Duration) []time.Duration {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})

	step := interval.Seconds() / (2 * float64(len(sources)))
	jitterEnd := step / 2

	pauses := make([]time.Duration, 0, len(sources)-1)
	for range len(sources) - 1 {
		jitter := (rng.Float64()*2 - 1) * jitterEnd
		secs := math.Floor(step + jitter)
		if secs < 0 {
			secs = 0
		}
		pauses = append(pauses, time.Duration(secs)*time.Second)
	}

	return pauses
}
