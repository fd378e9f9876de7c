package domain

import (
	"context"
	"time"
)

// AuctionStore is the durable state behind the engine. The store need not
// serialize access itself; the engine holds a per-auction lock across each
// load-resolve-persist cycle. UpdateAuction must perform an optimistic
// version check and return ErrConcurrentModification on mismatch.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuction(ctx context.Context, auction *Auction) error
	IncrementViewCount(ctx context.Context, auctionID string) error
	GetActiveAuctions(ctx context.Context) ([]*Auction, error)
	GetAuctionsDueToStart(ctx context.Context, before time.Time) ([]*Auction, error)
	GetAuctionsDueToEnd(ctx context.Context, before time.Time) ([]*Auction, error)

	AppendBid(ctx context.Context, bid *Bid) error
	MarkBidLosing(ctx context.Context, bidID string) error
	GetBidsForAuction(ctx context.Context, auctionID string) ([]*Bid, error)

	SaveAutoBid(ctx context.Context, autoBid *AutoBid) error
	GetActiveAutoBids(ctx context.Context, auctionID string) ([]*AutoBid, error)
	DeactivateAutoBid(ctx context.Context, auctionID, bidderID string) error
	DeactivateAutoBids(ctx context.Context, auctionID string) error
}

// Event interfaces
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *Event) error
