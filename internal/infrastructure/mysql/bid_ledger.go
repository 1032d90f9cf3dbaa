package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const bidColumns = `id, auction_id, bidder_id, amount, placed_at, accepted, is_winning, reason`

type bidRow struct {
	ID        string          `db:"id"`
	AuctionID string          `db:"auction_id"`
	BidderID  string          `db:"bidder_id"`
	Amount    decimal.Decimal `db:"amount"`
	PlacedAt  time.Time       `db:"placed_at"`
	Accepted  bool            `db:"accepted"`
	IsWinning bool            `db:"is_winning"`
	Reason    string          `db:"reason"`
}

func (r *bidRow) toDomain() *domain.Bid {
	return &domain.Bid{
		ID:        r.ID,
		AuctionID: r.AuctionID,
		BidderID:  r.BidderID,
		Amount:    r.Amount,
		Timestamp: r.PlacedAt,
		Accepted:  r.Accepted,
		IsWinning: r.IsWinning,
		Reason:    r.Reason,
	}
}

func insertBid(ctx context.Context, exec sqlx.ExecerContext, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := exec.ExecContext(ctx, query,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.Timestamp,
		bid.Accepted, bid.IsWinning, bid.Reason)
	if err != nil {
		return fmt.Errorf("insert bid %s: %w", bid.ID, err)
	}
	return nil
}

func applyLedger(ctx context.Context, tx *sqlx.Tx, auctionID string, change *domain.LedgerChange) error {
	if change.DeleteBidID != "" {
		res, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE auction_id = ? AND id = ?`, auctionID, change.DeleteBidID)
		if err != nil {
			return fmt.Errorf("delete bid %s: %w", change.DeleteBidID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrBidNotFound, change.DeleteBidID)
		}
	}

	if change.InsertBid != nil {
		if err := insertBid(ctx, tx, change.InsertBid); err != nil {
			return err
		}
	}

	query := `UPDATE bids SET is_winning = (id = ?) WHERE auction_id = ? AND accepted = TRUE`
	if _, err := tx.ExecContext(ctx, query, change.WinningBidID, auctionID); err != nil {
		return fmt.Errorf("mark winning bid for auction %s: %w", auctionID, err)
	}
	return nil
}

func (s *AuctionStore) GetBid(ctx context.Context, auctionID, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = ? AND id = ?`

	var row bidRow
	if err := s.db.GetContext(ctx, &row, query, auctionID, bidID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBidNotFound, bidID)
		}
		return nil, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return row.toDomain(), nil
}

// GetBids returns the ledger in placement order.
func (s *AuctionStore) GetBids(ctx context.Context, auctionID string, includeRejected bool) ([]*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = ? AND accepted = TRUE ORDER BY seq ASC`
	if includeRejected {
		query = `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = ? ORDER BY seq ASC`
	}

	rows := []bidRow{}
	if err := s.db.SelectContext(ctx, &rows, query, auctionID); err != nil {
		return nil, fmt.Errorf("select bids for auction %s: %w", auctionID, err)
	}

	bids := make([]*domain.Bid, 0, len(rows))
	for i := range rows {
		bids = append(bids, rows[i].toDomain())
	}
	return bids, nil
}

func (s *AuctionStore) RecordRejectedBid(ctx context.Context, bid *domain.Bid) error {
	rejected := *bid
	rejected.Accepted = false
	rejected.IsWinning = false
	return insertBid(ctx, s.db, &rejected)
}
