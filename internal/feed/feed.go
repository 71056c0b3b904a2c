// Package feed turns a channel's RSS feed into the set of video URLs the
// worker should download, either the N most recent or everything published
// at or after a given timestamp.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"

	"github.com/numbleroot/autotube/internal/domain"
)

// watchURLPattern matches the canonical link of a video entry: a watch URL
// carrying exactly the fixed-width 11-character video id.
var watchURLPattern = regexp.MustCompile(`^https://www\.youtube\.com/watch\?v=[A-Za-z0-9_-]{11}$`)

// Entry is one video found in a feed. Ephemeral, produced per invocation,
// never persisted.
type Entry struct {
	Published time.Time
	URL       string
}

type Config struct {
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration
}

// Client fetches channel feeds over HTTP and derives the two views the
// worker needs. Transient transport errors are retried with exponential
// backoff before a fetch is reported as failed.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// TopN fetches a fresh copy of the feed and returns the URLs of its n most
// recent videos. If the feed holds fewer than n entries, all are returned.
func (c *Client) TopN(ctx context.Context, feedURL string, n int) ([]string, error) {
	entries, err := c.recent(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}

	urls := make([]string, 0, n)
	for _, e := range entries[:n] {
		urls = append(urls, e.URL)
	}
	return urls, nil
}

// Since fetches a fresh copy of the feed and returns the URLs of all videos
// published at or after asOf, most recent first. The boundary is inclusive:
// an entry whose publish time equals asOf is returned.
func (c *Client) Since(ctx context.Context, feedURL string, asOf time.Time) ([]string, error) {
	entries, err := c.recent(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, e := range entries {
		if e.Published.Before(asOf) {
			continue
		}
		urls = append(urls, e.URL)
	}
	return urls, nil
}

func (c *Client) recent(ctx context.Context, feedURL string) ([]Entry, error) {
	body, err := c.fetchBody(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return parseRecent(body)
}

func (c *Client) fetchBody(ctx context.Context, feedURL string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status: %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.MaxElapsedTime = c.cfg.MaxElapsed

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("feed fetch failed, retrying",
			"feed_url", feedURL,
			"backoff", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFeedFetch, feedURL, err)
	}

	return body, nil
}

// parseRecent extracts all video entries from raw feed text, sorted
// descending by publish time. An entry counts as a video when its link
// matches the canonical watch URL pattern; a matching entry without a
// parseable publish time fails the whole call rather than being skipped.
func parseRecent(data []byte) ([]Entry, error) {
	parsed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFeedParse, err)
	}

	var entries []Entry
	for _, item := range parsed.Items {
		if !watchURLPattern.MatchString(item.Link) {
			continue
		}
		if item.PublishedParsed == nil {
			return nil, fmt.Errorf("%w: entry %s has no parseable publish time", domain.ErrFeedParse, item.Link)
		}
		entries = append(entries, Entry{Published: *item.PublishedParsed, URL: item.Link})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Published.After(entries[j].Published)
	})

	return entries, nil
}
