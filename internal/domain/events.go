package domain

import "time"

// Event is the fact published to downstream consumers after a committed
// state change. Delivery is best-effort, at least once.
type Event struct {
	Type      EventType `json:"type"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	WinnerID  string    `json:"winner_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventType string

const (
	EventAuctionCreated   EventType = "auction_created"
	EventAuctionStarted   EventType = "auction_started"
	EventBidPlaced        EventType = "bid_placed"
	EventAuctionEnded     EventType = "auction_ended"
	EventAuctionCancelled EventType = "auction_cancelled"
)
