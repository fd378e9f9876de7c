package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/resolver"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
)

// BidEngine owns all mutation of auction state. Every mutating operation
// runs under a per-auction lock covering the full load-resolve-persist
// cycle; operations on different auctions proceed in parallel. Domain
// events are published after the lock is released and never roll back a
// committed change.
type BidEngine struct {
	store  domain.AuctionStore
	events domain.EventPublisher
	locks  *keyedMutex
	log    logger.Logger

	now func() time.Time
}

func NewBidEngine(store domain.AuctionStore, events domain.EventPublisher, log logger.Logger) *BidEngine {
	return &BidEngine{
		store:  store,
		events: events,
		locks:  newKeyedMutex(),
		log:    log,
		now:    time.Now,
	}
}

type CreateAuctionInput struct {
	ProductID    string
	SellerID     string
	StartPrice   int64
	BuyNowPrice  int64 // 0 for no buy-now offer
	MinIncrement int64
	StartTime    time.Time
	EndTime      time.Time
}

// CreateAuction registers a new auction in SCHEDULED, or directly in
// ACTIVE when its start time has already passed.
func (e *BidEngine) CreateAuction(ctx context.Context, input CreateAuctionInput) (*domain.Auction, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := e.now()
	status := domain.AuctionScheduled
	if !input.StartTime.After(now) {
		status = domain.AuctionActive
	}

	auction := &domain.Auction{
		ID:           utils.GenerateID("auction"),
		ProductID:    input.ProductID,
		SellerID:     input.SellerID,
		StartPrice:   input.StartPrice,
		CurrentPrice: input.StartPrice,
		BuyNowPrice:  input.BuyNowPrice,
		MinIncrement: input.MinIncrement,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	e.publish(ctx, &domain.Event{
		Type:      domain.EventAuctionCreated,
		AuctionID: auction.ID,
		Amount:    auction.StartPrice,
		Timestamp: now,
	})

	e.log.Info("Auction created", "auction_id", auction.ID, "status", auction.Status.String())
	return auction, nil
}

func validateCreateInput(input CreateAuctionInput) error {
	switch {
	case input.ProductID == "" || input.SellerID == "":
		return fmt.Errorf("%w: product and seller are required", domain.ErrInvalidAuction)
	case input.StartPrice <= 0:
		return fmt.Errorf("%w: start price must be positive", domain.ErrInvalidAuction)
	case input.MinIncrement <= 0:
		return fmt.Errorf("%w: minimum increment must be positive", domain.ErrInvalidAuction)
	case input.BuyNowPrice != 0 && input.BuyNowPrice <= input.StartPrice:
		return fmt.Errorf("%w: buy-now price must exceed start price", domain.ErrInvalidAuction)
	case !input.EndTime.After(input.StartTime):
		return fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidAuction)
	}
	return nil
}

// GetAuction returns the auction and counts the view. The view counter is
// deliberately outside the serialized path; a lost increment under
// extreme concurrency is acceptable.
func (e *BidEngine) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := e.store.IncrementViewCount(ctx, auctionID); err != nil {
		e.log.Warn("Failed to count view", "auction_id", auctionID, "error", err)
	}
	return auction, nil
}

func (e *BidEngine) ListActiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return e.store.GetActiveAuctions(ctx)
}

func (e *BidEngine) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := e.store.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return e.store.GetBidsForAuction(ctx, auctionID)
}

// PlaceBid records a manual bid, resolving it against any active
// auto-bids, and returns the bidder's appended bid record.
func (e *BidEngine) PlaceBid(ctx context.Context, auctionID, bidderID, bidderName string, amount int64) (*domain.Bid, error) {
	return e.resolveIntent(ctx, auctionID, resolver.Intent{
		Kind:       resolver.IntentManualBid,
		BidderID:   bidderID,
		BidderName: bidderName,
		Amount:     amount,
	})
}

// BuyNow purchases the item immediately at the auction's buy-now price
// and ends the auction.
func (e *BidEngine) BuyNow(ctx context.Context, auctionID, bidderID, bidderName string) (*domain.Bid, error) {
	return e.resolveIntent(ctx, auctionID, resolver.Intent{
		Kind:       resolver.IntentBuyNow,
		BidderID:   bidderID,
		BidderName: bidderName,
	})
}

// RegisterAutoBid activates a proxy ceiling for the bidder, replacing any
// prior registration of theirs on this auction. Registration acts as an
// implicit bid: it may take the lead or trigger a proxy war immediately.
// A ceiling at or above the buy-now price wins the auction outright; in
// that case the auction ends, nothing is registered, and RegisterAutoBid
// returns (nil, nil).
func (e *BidEngine) RegisterAutoBid(ctx context.Context, auctionID, bidderID string, maxAmount int64) (*domain.AutoBid, error) {
	intent := resolver.Intent{
		Kind:     resolver.IntentAutoBidRegistration,
		BidderID: bidderID,
		Amount:   maxAmount,
	}

	var registered *domain.AutoBid
	unlock := e.locks.Lock(auctionID)
	pending, err := e.withRetry(func() ([]*domain.Event, error) {
		outcome, events, err := e.commitIntent(ctx, auctionID, intent)
		if err != nil {
			return nil, err
		}
		if outcome.CloseAuction {
			// The ceiling met the buy-now price; the auction is over
			// and there is nothing left to register.
			registered = nil
			return events, nil
		}
		if err := e.deactivateExisting(ctx, auctionID, bidderID); err != nil {
			return nil, err
		}
		now := e.now()
		registered = &domain.AutoBid{
			ID:        utils.GenerateID("autobid"),
			AuctionID: auctionID,
			BidderID:  bidderID,
			MaxAmount: maxAmount,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.store.SaveAutoBid(ctx, registered); err != nil {
			return nil, fmt.Errorf("save auto-bid: %w", err)
		}
		return events, nil
	})
	unlock()

	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, pending)
	return registered, nil
}

// CancelAutoBid deactivates the bidder's active registration. The current
// price and winner are untouched; a standing winning proxy bid remains
// the winning bid.
func (e *BidEngine) CancelAutoBid(ctx context.Context, auctionID, bidderID string) error {
	unlock := e.locks.Lock(auctionID)
	defer unlock()

	if _, err := e.store.GetAuction(ctx, auctionID); err != nil {
		return err
	}
	return e.store.DeactivateAutoBid(ctx, auctionID, bidderID)
}

// CancelAuction withdraws an auction that has received no bids. Only the
// seller may cancel, and only before the first bid is recorded.
func (e *BidEngine) CancelAuction(ctx context.Context, auctionID, sellerID string) error {
	unlock := e.locks.Lock(auctionID)
	pending, err := e.withRetry(func() ([]*domain.Event, error) {
		auction, err := e.store.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if auction.SellerID != sellerID {
			return nil, fmt.Errorf("%w: auction %s belongs to %s", domain.ErrNotOwner, auctionID, auction.SellerID)
		}
		if auction.Status.Terminal() {
			return nil, fmt.Errorf("%w: auction %s is %s", domain.ErrAuctionNotActive, auctionID, auction.Status)
		}
		if auction.BidCount > 0 {
			return nil, fmt.Errorf("%w: auction %s has %d bids", domain.ErrCannotCancelWithBids, auctionID, auction.BidCount)
		}

		auction.Status = domain.AuctionCancelled
		auction.UpdatedAt = e.now()
		if err := e.store.UpdateAuction(ctx, auction); err != nil {
			return nil, err
		}
		if err := e.store.DeactivateAutoBids(ctx, auctionID); err != nil {
			return nil, fmt.Errorf("deactivate auto-bids: %w", err)
		}
		return []*domain.Event{{
			Type:      domain.EventAuctionCancelled,
			AuctionID: auctionID,
			Timestamp: auction.UpdatedAt,
		}}, nil
	})
	unlock()

	if err != nil {
		return err
	}
	e.publishAll(ctx, pending)
	e.log.Info("Auction cancelled", "auction_id", auctionID)
	return nil
}

// StartAuction transitions a due SCHEDULED auction to ACTIVE. Calling it
// on an already-active auction is a no-op.
func (e *BidEngine) StartAuction(ctx context.Context, auctionID string) error {
	unlock := e.locks.Lock(auctionID)
	pending, err := e.withRetry(func() ([]*domain.Event, error) {
		auction, err := e.store.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if auction.Status != domain.AuctionScheduled {
			return nil, nil
		}

		auction.Status = domain.AuctionActive
		auction.UpdatedAt = e.now()
		if err := e.store.UpdateAuction(ctx, auction); err != nil {
			return nil, err
		}
		return []*domain.Event{{
			Type:      domain.EventAuctionStarted,
			AuctionID: auctionID,
			Amount:    auction.CurrentPrice,
			Timestamp: auction.UpdatedAt,
		}}, nil
	})
	unlock()

	if err != nil {
		return err
	}
	e.publishAll(ctx, pending)
	return nil
}

// EndAuction finalizes an auction. The winner and price are whatever the
// bid history produced; an auction that never received a bid ends as a
// no-sale with no winner. Ending an already-terminal auction is a no-op
// that returns the final state.
func (e *BidEngine) EndAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	var final *domain.Auction
	unlock := e.locks.Lock(auctionID)
	pending, err := e.withRetry(func() ([]*domain.Event, error) {
		auction, err := e.store.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if auction.Status.Terminal() {
			final = auction
			return nil, nil
		}

		auction.Status = domain.AuctionEnded
		auction.UpdatedAt = e.now()
		if err := e.store.UpdateAuction(ctx, auction); err != nil {
			return nil, err
		}
		final = auction
		return []*domain.Event{{
			Type:      domain.EventAuctionEnded,
			AuctionID: auctionID,
			WinnerID:  auction.WinnerID,
			Amount:    auction.CurrentPrice,
			Timestamp: auction.UpdatedAt,
		}}, nil
	})
	unlock()

	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, pending)
	return final, nil
}

// Sweep runs one scheduler pass: start every due SCHEDULED auction, then
// end every expired ACTIVE one. A failure on one auction is logged and
// does not abort the sweep for the rest.
func (e *BidEngine) Sweep(ctx context.Context) {
	now := e.now()

	due, err := e.store.GetAuctionsDueToStart(ctx, now)
	if err != nil {
		e.log.Error("Sweep: failed to list due auctions", "error", err)
	}
	for _, auction := range due {
		if err := e.StartAuction(ctx, auction.ID); err != nil {
			e.log.Error("Sweep: failed to start auction", "auction_id", auction.ID, "error", err)
			continue
		}
		e.log.Info("Auction started", "auction_id", auction.ID)
	}

	expired, err := e.store.GetAuctionsDueToEnd(ctx, now)
	if err != nil {
		e.log.Error("Sweep: failed to list expired auctions", "error", err)
		return
	}
	for _, auction := range expired {
		final, err := e.EndAuction(ctx, auction.ID)
		if err != nil {
			e.log.Error("Sweep: failed to end auction", "auction_id", auction.ID, "error", err)
			continue
		}
		e.log.Info("Auction ended", "auction_id", auction.ID, "winner_id", final.WinnerID, "final_price", final.CurrentPrice)
	}
}

// resolveIntent runs the shared serialized cycle for bid-shaped intents
// and returns the acting bidder's appended record.
func (e *BidEngine) resolveIntent(ctx context.Context, auctionID string, intent resolver.Intent) (*domain.Bid, error) {
	var placed *domain.Bid
	unlock := e.locks.Lock(auctionID)
	pending, err := e.withRetry(func() ([]*domain.Event, error) {
		outcome, events, err := e.commitIntent(ctx, auctionID, intent)
		if err != nil {
			return nil, err
		}
		placed = actingBid(outcome, intent.BidderID)
		return events, nil
	})
	unlock()

	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, pending)
	return placed, nil
}

// commitIntent loads the auction under the caller-held lock, resolves the
// intent, and persists the outcome. It returns the events to publish
// after the lock is released.
func (e *BidEngine) commitIntent(ctx context.Context, auctionID string, intent resolver.Intent) (*resolver.Outcome, []*domain.Event, error) {
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}
	autoBids, err := e.store.GetActiveAutoBids(ctx, auctionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load auto-bids: %w", err)
	}

	now := e.now()
	outcome, err := resolver.Resolve(auction, autoBids, intent, now)
	if err != nil {
		return nil, nil, err
	}

	for _, bid := range outcome.Bids {
		bid.ID = utils.GenerateID("bid")
	}
	winning := outcome.WinningBid()
	previousWinningBidID := auction.WinningBidID

	// The versioned auction update goes first: it is the optimistic gate,
	// and a lost check must leave no bid rows behind for the retry.
	auction.CurrentPrice = outcome.NewPrice
	auction.WinnerID = outcome.WinnerID
	auction.WinningBidID = winning.ID
	auction.BidCount += len(outcome.Bids)
	auction.UpdatedAt = now
	if outcome.CloseAuction {
		auction.Status = domain.AuctionEnded
	}
	if err := e.store.UpdateAuction(ctx, auction); err != nil {
		return nil, nil, err
	}

	events := make([]*domain.Event, 0, 2)
	for _, bid := range outcome.Bids {
		if err := e.store.AppendBid(ctx, bid); err != nil {
			return nil, nil, fmt.Errorf("append bid: %w", err)
		}
		events = append(events, &domain.Event{
			Type:      domain.EventBidPlaced,
			AuctionID: auctionID,
			BidderID:  bid.BidderID,
			Amount:    bid.Amount,
			Timestamp: now,
		})
	}

	if previousWinningBidID != "" {
		if err := e.store.MarkBidLosing(ctx, previousWinningBidID); err != nil {
			return nil, nil, fmt.Errorf("mark bid losing: %w", err)
		}
	}

	if outcome.CloseAuction {
		events = append(events, &domain.Event{
			Type:      domain.EventAuctionEnded,
			AuctionID: auctionID,
			WinnerID:  auction.WinnerID,
			Amount:    auction.CurrentPrice,
			Timestamp: now,
		})
	}
	return outcome, events, nil
}

// withRetry runs one load-resolve-persist cycle and retries it exactly
// once when the store reports a lost optimistic check.
func (e *BidEngine) withRetry(cycle func() ([]*domain.Event, error)) ([]*domain.Event, error) {
	events, err := cycle()
	if errors.Is(err, domain.ErrConcurrentModification) {
		e.log.Warn("Optimistic check lost, retrying cycle", "error", err)
		events, err = cycle()
	}
	return events, err
}

func (e *BidEngine) deactivateExisting(ctx context.Context, auctionID, bidderID string) error {
	err := e.store.DeactivateAutoBid(ctx, auctionID, bidderID)
	if errors.Is(err, domain.ErrAutoBidNotFound) {
		return nil
	}
	return err
}

func actingBid(outcome *resolver.Outcome, bidderID string) *domain.Bid {
	for _, b := range outcome.Bids {
		if b.BidderID == bidderID {
			return b
		}
	}
	return nil
}

func (e *BidEngine) publishAll(ctx context.Context, events []*domain.Event) {
	for _, ev := range events {
		e.publish(ctx, ev)
	}
}

// publish is best-effort: a failed delivery is logged, never propagated,
// and never rolls back the committed state change.
func (e *BidEngine) publish(ctx context.Context, event *domain.Event) {
	if err := e.events.Publish(ctx, event); err != nil {
		e.log.Error("Failed to publish event", "type", string(event.Type), "auction_id", event.AuctionID, "error", err)
	}
}
