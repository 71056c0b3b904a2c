package domain

import "errors"

var (
	// ErrFeedParse marks a malformed feed or an entry with an unparseable
	// publish time. One bad entry invalidates the whole parse.
	ErrFeedParse = errors.New("feed parse failed")

	// ErrFeedFetch marks a transport failure while retrieving a feed.
	ErrFeedFetch = errors.New("feed fetch failed")

	// ErrAlreadyFollowed is returned by the registry when a channel with
	// the same feed URL is already tracked.
	ErrAlreadyFollowed = errors.New("channel already followed")

	// ErrRetriesExhausted marks a download job that failed on its final
	// permitted attempt. Terminal: the job is dropped, not resubmitted.
	ErrRetriesExhausted = errors.New("download retries exhausted")

	// ErrNeverChecked marks a check job against a channel whose initial
	// follow has not completed yet. Hard error for that job only.
	ErrNeverChecked = errors.New("channel was never checked")
)
