// Package resolver contains the pure proxy-bid resolution algorithm. It
// performs no I/O and takes no locks; the engine feeds it a consistent
// snapshot of one auction and applies the returned outcome.
package resolver

import (
	"fmt"
	"time"

	"auction-engine/internal/domain"
)

type IntentKind int

const (
	IntentManualBid IntentKind = iota
	IntentAutoBidRegistration
	IntentBuyNow
)

func (k IntentKind) String() string {
	switch k {
	case IntentManualBid:
		return "manual_bid"
	case IntentAutoBidRegistration:
		return "auto_bid_registration"
	case IntentBuyNow:
		return "buy_now"
	default:
		return "unknown"
	}
}

// Intent is one bid-shaped action against an auction. Amount holds the
// manual bid amount or the auto-bid ceiling; it is ignored for buy-now.
type Intent struct {
	Kind       IntentKind
	BidderID   string
	BidderName string
	Amount     int64
}

// Outcome is the resolved effect of one intent: the new authoritative
// price and winner plus the bid records to append. Bids are returned in
// append order with IDs unset; exactly one carries IsWinning.
type Outcome struct {
	NewPrice     int64
	WinnerID     string
	Bids         []*domain.Bid
	CloseAuction bool
}

// WinningBid returns the appended record flagged as the new leader.
func (o *Outcome) WinningBid() *domain.Bid {
	for _, b := range o.Bids {
		if b.IsWinning {
			return b
		}
	}
	return nil
}

// Resolve applies one intent to an auction snapshot. autoBids must be the
// currently active registrations for the auction; the acting bidder's own
// registration and any registration whose ceiling no longer exceeds the
// current price are ignored as competitors.
//
// Resolution is single-hop: one intent elevates at most one competing
// proxy. A proxy elevated here does not recursively trigger a third
// party's proxy within the same call.
func Resolve(auction *domain.Auction, autoBids []*domain.AutoBid, intent Intent, now time.Time) (*Outcome, error) {
	if auction.Status != domain.AuctionActive {
		return nil, fmt.Errorf("%w: auction %s is %s", domain.ErrAuctionNotActive, auction.ID, auction.Status)
	}

	if intent.Kind == IntentBuyNow {
		if !auction.HasBuyNow() {
			return nil, fmt.Errorf("%w: auction %s has no buy-now price", domain.ErrInvalidBidAmount, auction.ID)
		}
		return buyNowOutcome(auction, intent, now), nil
	}

	// A bid or ceiling at the buy-now price short-circuits resolution.
	if auction.HasBuyNow() && intent.Amount >= auction.BuyNowPrice {
		return buyNowOutcome(auction, intent, now), nil
	}

	switch intent.Kind {
	case IntentManualBid:
		return resolveManualBid(auction, autoBids, intent, now)
	case IntentAutoBidRegistration:
		return resolveRegistration(auction, autoBids, intent, now)
	default:
		return nil, fmt.Errorf("unsupported intent kind %d", intent.Kind)
	}
}

// buyNowOutcome ends the auction immediately in favor of the acting
// bidder at exactly the buy-now price.
func buyNowOutcome(auction *domain.Auction, intent Intent, now time.Time) *Outcome {
	return &Outcome{
		NewPrice:     auction.BuyNowPrice,
		WinnerID:     intent.BidderID,
		CloseAuction: true,
		Bids: []*domain.Bid{
			newBid(auction, intent, auction.BuyNowPrice, now, true, false),
		},
	}
}

func resolveManualBid(auction *domain.Auction, autoBids []*domain.AutoBid, intent Intent, now time.Time) (*Outcome, error) {
	minAcceptable := auction.StartPrice
	if auction.HasWinner() {
		minAcceptable = auction.CurrentPrice + auction.MinIncrement
	}
	if intent.Amount < minAcceptable {
		return nil, fmt.Errorf("%w: got %d, need at least %d", domain.ErrInvalidBidAmount, intent.Amount, minAcceptable)
	}

	top := topCompetingAutoBid(auction, autoBids, intent.BidderID)
	if top == nil {
		// No proxy in play: the bid stands at its full amount.
		return &Outcome{
			NewPrice: intent.Amount,
			WinnerID: intent.BidderID,
			Bids: []*domain.Bid{
				newBid(auction, intent, intent.Amount, now, true, false),
			},
		}, nil
	}

	if intent.Amount > top.MaxAmount {
		// Bid clears the highest proxy ceiling; the proxy pushes the
		// price up to one increment past its ceiling at most.
		price := minInt64(intent.Amount, top.MaxAmount+auction.MinIncrement)
		return &Outcome{
			NewPrice: price,
			WinnerID: intent.BidderID,
			Bids: []*domain.Bid{
				newBid(auction, intent, price, now, true, false),
			},
		}, nil
	}

	// Ceiling holds (ties keep first-in priority): the proxy owner is
	// elevated to the minimum amount that beats the challenge.
	price := minInt64(top.MaxAmount, intent.Amount+auction.MinIncrement)
	return &Outcome{
		NewPrice: price,
		WinnerID: top.BidderID,
		Bids: []*domain.Bid{
			newBid(auction, intent, intent.Amount, now, false, false),
			proxyBid(auction, top, price, now),
		},
	}, nil
}

func resolveRegistration(auction *domain.Auction, autoBids []*domain.AutoBid, intent Intent, now time.Time) (*Outcome, error) {
	if intent.Amount <= auction.CurrentPrice {
		return nil, fmt.Errorf("%w: ceiling %d must exceed current price %d", domain.ErrInvalidBidAmount, intent.Amount, auction.CurrentPrice)
	}

	top := topCompetingAutoBid(auction, autoBids, intent.BidderID)
	if top == nil {
		if !auction.HasWinner() || auction.WinnerID == intent.BidderID {
			// Nothing to outbid: the registrant takes (or keeps) the
			// lead and the price does not move until challenged.
			return &Outcome{
				NewPrice: auction.CurrentPrice,
				WinnerID: intent.BidderID,
				Bids: []*domain.Bid{
					newBid(auction, intent, auction.CurrentPrice, now, true, true),
				},
			}, nil
		}
		// A standing manual bid leads; the registration outbids it by
		// the minimum increment, capped at its own ceiling.
		price := minInt64(intent.Amount, auction.CurrentPrice+auction.MinIncrement)
		return &Outcome{
			NewPrice: price,
			WinnerID: intent.BidderID,
			Bids: []*domain.Bid{
				newBid(auction, intent, price, now, true, true),
			},
		}, nil
	}

	if intent.Amount > top.MaxAmount {
		price := minInt64(intent.Amount, top.MaxAmount+auction.MinIncrement)
		return &Outcome{
			NewPrice: price,
			WinnerID: intent.BidderID,
			Bids: []*domain.Bid{
				newBid(auction, intent, price, now, true, true),
			},
		}, nil
	}

	// The existing proxy holds, at or above the new ceiling (first-in
	// priority on exact ties). It is elevated just past the challenge.
	price := minInt64(top.MaxAmount, intent.Amount+auction.MinIncrement)
	return &Outcome{
		NewPrice: price,
		WinnerID: top.BidderID,
		Bids: []*domain.Bid{
			newBid(auction, intent, intent.Amount, now, false, true),
			proxyBid(auction, top, price, now),
		},
	}, nil
}

// topCompetingAutoBid returns the strongest active registration that can
// still compete: the acting bidder's own registration is excluded, as is
// any ceiling already at or below the current price (a stale loser).
// Among equal ceilings the earliest registration wins.
func topCompetingAutoBid(auction *domain.Auction, autoBids []*domain.AutoBid, actingBidderID string) *domain.AutoBid {
	var top *domain.AutoBid
	for _, ab := range autoBids {
		if !ab.IsActive || ab.BidderID == actingBidderID {
			continue
		}
		if ab.MaxAmount <= auction.CurrentPrice {
			continue
		}
		if top == nil || ab.MaxAmount > top.MaxAmount ||
			(ab.MaxAmount == top.MaxAmount && ab.CreatedAt.Before(top.CreatedAt)) {
			top = ab
		}
	}
	return top
}

func newBid(auction *domain.Auction, intent Intent, amount int64, now time.Time, winning, auto bool) *domain.Bid {
	return &domain.Bid{
		AuctionID:  auction.ID,
		BidderID:   intent.BidderID,
		BidderName: intent.BidderName,
		Amount:     amount,
		BidTime:    now,
		IsWinning:  winning,
		IsAutoBid:  auto,
	}
}

// proxyBid is the system-generated record placed on behalf of an elevated
// auto-bid holder.
func proxyBid(auction *domain.Auction, ab *domain.AutoBid, amount int64, now time.Time) *domain.Bid {
	return &domain.Bid{
		AuctionID: auction.ID,
		BidderID:  ab.BidderID,
		Amount:    amount,
		BidTime:   now,
		IsWinning: true,
		IsAutoBid: true,
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
