package repository

import (
	"context"

	"streamtube/internal/domain"
)

// ChannelStats holds the subscriber-derived fields of a channel profile,
// computed for one viewer.
type ChannelStats struct {
	SubscribersCount   int64
	SubscriptionsCount int64
	IsSubscribed       bool
}

// SubscriptionRepository reads subscription edges. The account backend never
// mutates edges outside of tests; Create exists for seeding and for the
// platform components that own the relationship.
type SubscriptionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, sub *domain.Subscription) (int64, error)
	// ChannelStats counts subscribers of channelID, subscriptions made by
	// channelID, and whether viewerID subscribes to channelID. A zero
	// viewerID means an anonymous viewer.
	ChannelStats(ctx context.Context, channelID, viewerID int64) (*ChannelStats, error)
}
