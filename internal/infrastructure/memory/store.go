// Package memory provides an in-process AuctionStore used by tests and
// local runs. It honors the same optimistic version contract as the MySQL
// store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string][]*domain.Bid    // keyed by auction id
	autoBids map[string][]*domain.AutoBid // keyed by auction id
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]*domain.Bid),
		autoBids: make(map[string][]*domain.AutoBid),
	}
}

func (s *Store) CreateAuction(_ context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.ID]; exists {
		return fmt.Errorf("auction %s already exists", auction.ID)
	}
	clone := *auction
	s.auctions[auction.ID] = &clone
	return nil
}

func (s *Store) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	clone := *auction
	return &clone, nil
}

func (s *Store) UpdateAuction(_ context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.auctions[auction.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auction.ID)
	}
	if stored.Version != auction.Version {
		return fmt.Errorf("%w: auction %s version %d, expected %d",
			domain.ErrConcurrentModification, auction.ID, stored.Version, auction.Version)
	}

	clone := *auction
	clone.Version++
	clone.ViewCount = stored.ViewCount // view counter is owned by the store
	s.auctions[auction.ID] = &clone
	auction.Version = clone.Version
	return nil
}

func (s *Store) IncrementViewCount(_ context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	auction.ViewCount++
	return nil
}

func (s *Store) GetActiveAuctions(_ context.Context) ([]*domain.Auction, error) {
	return s.listAuctions(func(a *domain.Auction) bool {
		return a.Status == domain.AuctionActive
	}), nil
}

func (s *Store) GetAuctionsDueToStart(_ context.Context, before time.Time) ([]*domain.Auction, error) {
	return s.listAuctions(func(a *domain.Auction) bool {
		return a.Status == domain.AuctionScheduled && !a.StartTime.After(before)
	}), nil
}

func (s *Store) GetAuctionsDueToEnd(_ context.Context, before time.Time) ([]*domain.Auction, error) {
	return s.listAuctions(func(a *domain.Auction) bool {
		return a.Status == domain.AuctionActive && !a.EndTime.After(before)
	}), nil
}

func (s *Store) listAuctions(match func(*domain.Auction) bool) []*domain.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Auction
	for _, a := range s.auctions {
		if match(a) {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AppendBid(_ context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *bid
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], &clone)
	return nil
}

func (s *Store) MarkBidLosing(_ context.Context, bidID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bids := range s.bids {
		for _, b := range bids {
			if b.ID == bidID {
				b.IsWinning = false
				return nil
			}
		}
	}
	return fmt.Errorf("bid %s not found", bidID)
}

func (s *Store) GetBidsForAuction(_ context.Context, auctionID string) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := s.bids[auctionID]
	out := make([]*domain.Bid, 0, len(bids))
	for _, b := range bids {
		clone := *b
		out = append(out, &clone)
	}
	return out, nil
}

func (s *Store) SaveAutoBid(_ context.Context, autoBid *domain.AutoBid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *autoBid
	s.autoBids[autoBid.AuctionID] = append(s.autoBids[autoBid.AuctionID], &clone)
	return nil
}

func (s *Store) GetActiveAutoBids(_ context.Context, auctionID string) ([]*domain.AutoBid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.AutoBid
	for _, ab := range s.autoBids[auctionID] {
		if ab.IsActive {
			clone := *ab
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeactivateAutoBid(_ context.Context, auctionID, bidderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, ab := range s.autoBids[auctionID] {
		if ab.IsActive && ab.BidderID == bidderID {
			ab.IsActive = false
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: bidder %s on auction %s", domain.ErrAutoBidNotFound, bidderID, auctionID)
	}
	return nil
}

func (s *Store) DeactivateAutoBids(_ context.Context, auctionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ab := range s.autoBids[auctionID] {
		ab.IsActive = false
	}
	return nil
}
