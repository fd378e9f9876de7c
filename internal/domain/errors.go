package domain

import "errors"

// Lookup and lifecycle errors
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAutoBidNotFound  = errors.New("no active auto-bid registration")
)

// Business rule errors
var (
	ErrInvalidAuction       = errors.New("invalid auction parameters")
	ErrInvalidBidAmount     = errors.New("bid amount below required minimum")
	ErrNotOwner             = errors.New("caller does not own this auction")
	ErrCannotCancelWithBids = errors.New("auction with recorded bids cannot be cancelled")
)

// ErrConcurrentModification is returned by stores whose optimistic
// version check failed. The engine retries the cycle once before
// surfacing it.
var ErrConcurrentModification = errors.New("auction modified concurrently")
