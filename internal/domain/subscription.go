package domain

import "time"

// Subscription is a directed edge from a subscriber to a channel. Account
// operations only read these edges; creating them belongs to another part of
// the platform.
type Subscription struct {
	ID           int64
	SubscriberID int64
	ChannelID    int64
	CreatedAt    time.Time
}

// ChannelProfile is the public view of a user as a channel, including
// subscriber-derived fields computed for a particular viewer.
type ChannelProfile struct {
	Username           string
	FullName           string
	Email              string
	AvatarURL          string
	CoverImageURL      string
	SubscribersCount   int64
	SubscriptionsCount int64
	IsSubscribed       bool
}
