package domain

import (
	"time"
)

// Auction is the single authoritative record for one listed item.
// Monetary amounts are expressed in minor currency units.
type Auction struct {
	ID           string
	ProductID    string
	SellerID     string
	StartPrice   int64
	CurrentPrice int64
	BuyNowPrice  int64 // 0 when no buy-now offer
	MinIncrement int64
	StartTime    time.Time
	EndTime      time.Time
	Status       AuctionStatus
	WinnerID     string
	WinningBidID string
	BidCount     int
	ViewCount    int64
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuctionStatus int

const (
	AuctionScheduled AuctionStatus = iota
	AuctionActive
	AuctionEnded
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionScheduled:
		return "scheduled"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the auction can no longer be mutated.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionEnded || s == AuctionCancelled
}

func (a *Auction) HasBuyNow() bool {
	return a.BuyNowPrice > 0
}

// HasWinner reports whether any bid currently leads the auction.
func (a *Auction) HasWinner() bool {
	return a.WinningBidID != ""
}

type Bid struct {
	ID         string
	AuctionID  string
	BidderID   string
	BidderName string
	Amount     int64
	BidTime    time.Time
	IsWinning  bool
	IsAutoBid  bool
}

// AutoBid is a bidder-set ceiling the engine uses to keep that bidder in
// the lead with the minimum necessary amount. At most one is active per
// (auction, bidder) pair.
type AutoBid struct {
	ID        string
	AuctionID string
	BidderID  string
	MaxAmount int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
