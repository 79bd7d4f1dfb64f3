package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"streamtube/internal/domain"
	"streamtube/internal/repository"
)

const createSubscriptionsTable = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subscriber_id INTEGER NOT NULL REFERENCES users(id),
	channel_id INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	UNIQUE(subscriber_id, channel_id)
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_channel ON subscriptions(channel_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_subscriber ON subscriptions(subscriber_id);
`

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) repository.SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSubscriptionsTable); err != nil {
		return fmt.Errorf("create subscriptions table: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (int64, error) {
	sub.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
VALUES (?, ?, ?)`,
		sub.SubscriberID,
		sub.ChannelID,
		sub.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert subscription: %w", repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert subscription: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("subscription last insert id: %w", err)
	}
	sub.ID = id
	return id, nil
}

// ChannelStats runs both subscription joins in one round trip: subscribers of
// the channel, subscriptions made by the channel owner, and whether the
// viewer is among the subscribers.
func (r *SubscriptionRepository) ChannelStats(ctx context.Context, channelID, viewerID int64) (*repository.ChannelStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM subscriptions WHERE channel_id = ?),
	(SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = ?),
	EXISTS(SELECT 1 FROM subscriptions WHERE channel_id = ? AND subscriber_id = ?)`,
		channelID,
		channelID,
		channelID,
		viewerID,
	)

	var stats repository.ChannelStats
	if err := row.Scan(
		&stats.SubscribersCount,
		&stats.SubscriptionsCount,
		&stats.IsSubscribed,
	); err != nil {
		return nil, fmt.Errorf("scan channel stats: %w", err)
	}
	if viewerID == 0 {
		stats.IsSubscribed = false
	}
	return &stats, nil
}
