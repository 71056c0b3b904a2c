// Package youtube validates user-submitted YouTube URLs and resolves
// channel pages to their RSS feed URLs.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidVideoURL   = errors.New("unsupported or invalid video URL")
	ErrInvalidChannelURL = errors.New("unsupported or invalid channel URL")
	ErrMissingVideoID    = errors.New("video ID parameter missing from or incorrect in YouTube URL")
	ErrChannelNotFound   = errors.New("supplied YouTube channel URL did not return 200 OK")
	ErrFeedURLNotFound   = errors.New("didn't find channel ID in YouTube channel webpage")
)

const (
	videoPathPrefix   = "youtube.com/watch?"
	channelPathPrefix = "youtube.com/@"

	// Canonical link element present in the DOM of every channel page,
	// carrying the channel's RSS feed URL.
	feedLinkPrefix = `<link rel="alternate" type="application/rss+xml" title="RSS" href="`
	feedLinkMarker = feedLinkPrefix + "https://www.youtube.com/feeds/videos.xml?channel_id=UC"

	// Full feed URL length: the videos.xml base plus a 24-character
	// channel ID.
	feedURLLen = 76
)

// normalize strips scheme and www prefixes so the remaining checks only
// have to deal with bare host paths.
func normalize(raw string) string {
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "http://")
	return strings.TrimPrefix(raw, "www.")
}

// ValidateVideoURL checks that the supplied URL points to a YouTube video
// and returns its canonical form, stripped of any extra query parameters.
func ValidateVideoURL(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidVideoURL
	}

	url := normalize(raw)
	if !strings.HasPrefix(url, videoPathPrefix) {
		return "", ErrInvalidVideoURL
	}

	// A well-formed video ID parameter is "v=" plus an 11-character ID.
	for _, part := range strings.Split(url[len(videoPathPrefix):], "&") {
		if len(part) == 13 && strings.HasPrefix(part, "v=") {
			return "https://www.youtube.com/watch?" + part, nil
		}
	}

	return "", ErrMissingVideoID
}

// ChannelResolver verifies channel URLs against the live site and extracts
// the RSS feed URL embedded in the channel page.
type ChannelResolver struct {
	client *http.Client
}

func NewChannelResolver(timeout time.Duration) *ChannelResolver {
	return &ChannelResolver{
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve checks that the supplied URL names an existing YouTube channel
// and returns the canonical channel URL alongside the channel's RSS feed
// URL taken from the page markup.
func (r *ChannelResolver) Resolve(ctx context.Context, raw string) (string, string, error) {
	if raw == "" {
		return "", "", ErrInvalidChannelURL
	}

	url := normalize(raw)
	if !strings.HasPrefix(url, channelPathPrefix) {
		return "", "", ErrInvalidChannelURL
	}

	// Keep only the handle itself, dropping any trailing path such as
	// /videos or /about.
	handle, _, _ := strings.Cut(url[len(channelPathPrefix):], "/")
	channelURL := strings.ToLower("https://www." + channelPathPrefix + handle)

	feedURL, err := r.fetchFeedURL(ctx, channelURL)
	if err != nil {
		return "", "", err
	}

	return channelURL, feedURL, nil
}

func (r *ChannelResolver) fetchFeedURL(ctx context.Context, channelURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, channelURL, nil)
	if err != nil {
		return "", fmt.Errorf("building channel page request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching channel page %s: %w", channelURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %d", ErrChannelNotFound, channelURL, resp.StatusCode)
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading channel page %s: %w", channelURL, err)
	}

	offset := strings.Index(string(page), feedLinkMarker)
	if offset < 0 {
		return "", fmt.Errorf("%w: %s", ErrFeedURLNotFound, channelURL)
	}

	start := offset + len(feedLinkPrefix)
	if start+feedURLLen > len(page) {
		return "", fmt.Errorf("%w: %s", ErrFeedURLNotFound, channelURL)
	}

	return string(page[start : start+feedURLLen]), nil
}
