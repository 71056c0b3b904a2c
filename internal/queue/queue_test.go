package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numbleroot/autotube/internal/domain"
)

func TestSubmit_FIFOOrder(t *testing.T) {
	q := New(8)
	ctx := context.Background()

	urls := []string{
		"https://www.youtube.com/watch?v=aaaaaaaaaaa",
		"https://www.youtube.com/watch?v=bbbbbbbbbbb",
		"https://www.youtube.com/watch?v=ccccccccccc",
	}
	for _, u := range urls {
		require.NoError(t, q.Submit(ctx, domain.NewDownload(u)))
	}

	for _, want := range urls {
		job := <-q.Jobs()
		download, ok := job.(domain.DownloadJob)
		require.True(t, ok)
		assert.Equal(t, want, download.URL)
	}
}

func TestSubmit_BlocksWhenFull(t *testing.T) {
	q := New(1)
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, domain.CheckJob{FeedURL: "a"}))

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := q.Submit(blockedCtx, domain.CheckJob{FeedURL: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Draining one slot unblocks the producer again.
	<-q.Jobs()
	require.NoError(t, q.Submit(ctx, domain.CheckJob{FeedURL: "b"}))
}

func TestClose_TerminatesReceiveLoop(t *testing.T) {
	q := New(4)
	require.NoError(t, q.Submit(context.Background(), domain.FollowJob{FeedURL: "f", DownloadAsOf: 1}))

	q.Close()
	q.Close() // idempotent

	// Buffered job is still delivered, then the channel reports closure.
	_, ok := <-q.Jobs()
	assert.True(t, ok)
	_, ok = <-q.Jobs()
	assert.False(t, ok)
}
