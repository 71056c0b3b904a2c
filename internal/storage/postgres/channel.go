package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/numbleroot/autotube/internal/domain"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// ChannelStore is the persistent registry of followed channels. Every
// operation is a single atomic statement; there are no cross-job
// transactions.
type ChannelStore struct {
	db *sqlx.DB
}

func NewChannelStore(db *sqlx.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

// Insert registers a new channel. last_checked stays NULL until the first
// follow job completes, which keeps the trigger from polling the channel
// before its backfill ran. A feed URL collision maps to ErrAlreadyFollowed.
func (s *ChannelStore) Insert(ctx context.Context, src *domain.Source) error {
	query := `
		INSERT INTO channels (name, platform, feed_url, check_frequency)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, src.Name, src.Platform, src.FeedURL, src.Frequency)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.ErrAlreadyFollowed
	}
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}

	return nil
}

// ListInitializedByFrequency returns all channels of one cadence class
// whose initial follow has completed. Channels with a NULL last_checked are
// excluded; initializing them is the follow job's business.
func (s *ChannelStore) ListInitializedByFrequency(ctx context.Context, freq domain.Frequency) ([]domain.Source, error) {
	query := `
		SELECT name, platform, feed_url, check_frequency, last_checked
		FROM channels
		WHERE check_frequency = $1 AND last_checked IS NOT NULL`

	var sources []domain.Source
	if err := s.db.SelectContext(ctx, &sources, query, freq); err != nil {
		return nil, fmt.Errorf("list channels for frequency %q: %w", freq, err)
	}

	return sources, nil
}

// GetLastChecked returns the channel's last poll time, or nil when the
// channel has never been checked.
func (s *ChannelStore) GetLastChecked(ctx context.Context, feedURL string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.GetContext(ctx, &last,
		"SELECT last_checked FROM channels WHERE feed_url = $1", feedURL)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("channel not followed: %s", feedURL)
	}
	if err != nil {
		return nil, fmt.Errorf("get last_checked: %w", err)
	}

	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// SetLastChecked records ts as the channel's most recent poll time.
func (s *ChannelStore) SetLastChecked(ctx context.Context, feedURL string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE channels SET last_checked = $1 WHERE feed_url = $2", ts, feedURL)
	if err != nil {
		return fmt.Errorf("set last_checked: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("channel not followed: %s", feedURL)
	}

	return nil
}
