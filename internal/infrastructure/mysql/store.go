package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"auction-engine/internal/domain"
)

// Store is the MySQL-backed AuctionStore. It relies on the engine's
// per-auction serialization for cross-row consistency; the versioned
// auction update is the only optimistic check.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const auctionColumns = `id, product_id, seller_id, start_price, current_price, buy_now_price,
        min_increment, start_time, end_time, status, winner_id, winning_bid_id,
        bid_count, view_count, version, created_at, updated_at`

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.ProductID, auction.SellerID,
		auction.StartPrice, auction.CurrentPrice, auction.BuyNowPrice,
		auction.MinIncrement, auction.StartTime, auction.EndTime,
		int(auction.Status), auction.WinnerID, auction.WinningBidID,
		auction.BidCount, auction.ViewCount, auction.Version,
		auction.CreatedAt, auction.UpdatedAt)
	return err
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	return auction, err
}

func (s *Store) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions
        SET current_price = ?, status = ?, winner_id = ?, winning_bid_id = ?,
            bid_count = ?, end_time = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?
    `
	result, err := s.db.ExecContext(ctx, query,
		auction.CurrentPrice, int(auction.Status), auction.WinnerID, auction.WinningBidID,
		auction.BidCount, auction.EndTime, auction.UpdatedAt,
		auction.ID, auction.Version)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: auction %s version %d", domain.ErrConcurrentModification, auction.ID, auction.Version)
	}
	auction.Version++
	return nil
}

func (s *Store) IncrementViewCount(ctx context.Context, auctionID string) error {
	query := `UPDATE auctions SET view_count = view_count + 1 WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, auctionID)
	return err
}

func (s *Store) GetActiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ?`
	return s.queryAuctions(ctx, query, int(domain.AuctionActive))
}

func (s *Store) GetAuctionsDueToStart(ctx context.Context, before time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? AND start_time <= ?`
	return s.queryAuctions(ctx, query, int(domain.AuctionScheduled), before)
}

func (s *Store) GetAuctionsDueToEnd(ctx context.Context, before time.Time) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? AND end_time <= ?`
	return s.queryAuctions(ctx, query, int(domain.AuctionActive), before)
}

func (s *Store) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var status int

	err := row.Scan(
		&auction.ID, &auction.ProductID, &auction.SellerID,
		&auction.StartPrice, &auction.CurrentPrice, &auction.BuyNowPrice,
		&auction.MinIncrement, &auction.StartTime, &auction.EndTime,
		&status, &auction.WinnerID, &auction.WinningBidID,
		&auction.BidCount, &auction.ViewCount, &auction.Version,
		&auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	return &auction, nil
}

func (s *Store) AppendBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, bid_time, is_winning, is_auto_bid)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.BidderName,
		bid.Amount, bid.BidTime, bid.IsWinning, bid.IsAutoBid)
	return err
}

func (s *Store) MarkBidLosing(ctx context.Context, bidID string) error {
	query := `UPDATE bids SET is_winning = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, false, bidID)
	return err
}

func (s *Store) GetBidsForAuction(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, bidder_name, amount, bid_time, is_winning, is_auto_bid
        FROM bids
        WHERE auction_id = ?
        ORDER BY bid_time ASC, id ASC
    `

	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.BidderName,
			&bid.Amount, &bid.BidTime, &bid.IsWinning, &bid.IsAutoBid)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}

func (s *Store) SaveAutoBid(ctx context.Context, autoBid *domain.AutoBid) error {
	query := `
        INSERT INTO auto_bids (id, auction_id, bidder_id, max_amount, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		autoBid.ID, autoBid.AuctionID, autoBid.BidderID,
		autoBid.MaxAmount, autoBid.IsActive, autoBid.CreatedAt, autoBid.UpdatedAt)
	return err
}

func (s *Store) GetActiveAutoBids(ctx context.Context, auctionID string) ([]*domain.AutoBid, error) {
	query := `
        SELECT id, auction_id, bidder_id, max_amount, is_active, created_at, updated_at
        FROM auto_bids
        WHERE auction_id = ? AND is_active = ?
        ORDER BY created_at ASC
    `

	rows, err := s.db.QueryContext(ctx, query, auctionID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var autoBids []*domain.AutoBid
	for rows.Next() {
		var ab domain.AutoBid
		err := rows.Scan(&ab.ID, &ab.AuctionID, &ab.BidderID,
			&ab.MaxAmount, &ab.IsActive, &ab.CreatedAt, &ab.UpdatedAt)
		if err != nil {
			return nil, err
		}
		autoBids = append(autoBids, &ab)
	}
	return autoBids, rows.Err()
}

func (s *Store) DeactivateAutoBid(ctx context.Context, auctionID, bidderID string) error {
	query := `
        UPDATE auto_bids SET is_active = ?, updated_at = ?
        WHERE auction_id = ? AND bidder_id = ? AND is_active = ?
    `
	result, err := s.db.ExecContext(ctx, query, false, time.Now(), auctionID, bidderID, true)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: bidder %s on auction %s", domain.ErrAutoBidNotFound, bidderID, auctionID)
	}
	return nil
}

func (s *Store) DeactivateAutoBids(ctx context.Context, auctionID string) error {
	query := `UPDATE auto_bids SET is_active = ?, updated_at = ? WHERE auction_id = ? AND is_active = ?`
	_, err := s.db.ExecContext(ctx, query, false, time.Now(), auctionID, true)
	return err
}
