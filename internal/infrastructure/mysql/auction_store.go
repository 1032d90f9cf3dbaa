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

const auctionColumns = `id, material_id, seller_id, starting_price, current_bid, current_bidder_id, bid_count,
        start_time, end_time, status, seller_approved, admin_approved, winner_id, purchase_order_ref,
        reject_reason, version, created_at, updated_at`

type auctionRow struct {
	ID               string          `db:"id"`
	MaterialID       string          `db:"material_id"`
	SellerID         string          `db:"seller_id"`
	StartingPrice    decimal.Decimal `db:"starting_price"`
	CurrentBid       decimal.Decimal `db:"current_bid"`
	CurrentBidderID  string          `db:"current_bidder_id"`
	BidCount         int             `db:"bid_count"`
	StartTime        time.Time       `db:"start_time"`
	EndTime          time.Time       `db:"end_time"`
	Status           int             `db:"status"`
	SellerApproved   bool            `db:"seller_approved"`
	AdminApproved    bool            `db:"admin_approved"`
	WinnerID         string          `db:"winner_id"`
	PurchaseOrderRef string          `db:"purchase_order_ref"`
	RejectReason     string          `db:"reject_reason"`
	Version          int64           `db:"version"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r *auctionRow) toDomain() *domain.Auction {
	return &domain.Auction{
		ID:               r.ID,
		MaterialID:       r.MaterialID,
		SellerID:         r.SellerID,
		StartingPrice:    r.StartingPrice,
		CurrentBid:       r.CurrentBid,
		CurrentBidderID:  r.CurrentBidderID,
		BidCount:         r.BidCount,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Status:           domain.AuctionStatus(r.Status),
		SellerApproved:   r.SellerApproved,
		AdminApproved:    r.AdminApproved,
		WinnerID:         r.WinnerID,
		PurchaseOrderRef: r.PurchaseOrderRef,
		RejectReason:     r.RejectReason,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// AuctionStore persists auctions and their bid ledgers. Every mutation is a
// single transaction guarded by the auction row's version column.
type AuctionStore struct {
	db *sqlx.DB
}

func NewAuctionStore(db *sqlx.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.MaterialID, auction.SellerID, auction.StartingPrice, auction.CurrentBid,
		auction.CurrentBidderID, auction.BidCount, auction.StartTime, auction.EndTime, int(auction.Status),
		auction.SellerApproved, auction.AdminApproved, auction.WinnerID, auction.PurchaseOrderRef,
		auction.RejectReason, auction.Version, auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert auction %s: %w", auction.ID, err)
	}
	return nil
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`

	var row auctionRow
	if err := s.db.GetContext(ctx, &row, query, auctionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
		}
		return nil, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return row.toDomain(), nil
}

func (s *AuctionStore) ListAuctions(ctx context.Context, status *domain.AuctionStatus, limit int) ([]*domain.Auction, error) {
	if status == nil {
		query := `SELECT ` + auctionColumns + ` FROM auctions ORDER BY end_time ASC, id ASC LIMIT ?`
		return s.selectAuctions(ctx, query, limit)
	}
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = ? ORDER BY end_time ASC, id ASC LIMIT ?`
	return s.selectAuctions(ctx, query, int(*status), limit)
}

func (s *AuctionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions WHERE status = ? AND end_time <= ?
        ORDER BY end_time ASC LIMIT ?
    `
	return s.selectAuctions(ctx, query, int(domain.AuctionActive), now, limit)
}

func (s *AuctionStore) ListStartable(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions WHERE status = ? AND start_time <= ?
        ORDER BY start_time ASC LIMIT ?
    `
	return s.selectAuctions(ctx, query, int(domain.AuctionScheduled), now, limit)
}

func (s *AuctionStore) selectAuctions(ctx context.Context, query string, args ...interface{}) ([]*domain.Auction, error) {
	rows := []auctionRow{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select auctions: %w", err)
	}

	auctions := make([]*domain.Auction, 0, len(rows))
	for i := range rows {
		auctions = append(auctions, rows[i].toDomain())
	}
	return auctions, nil
}

// ApplyMutation replaces the auction row only if its version still equals
// ExpectedVersion, applying the ledger change in the same transaction.
func (s *AuctionStore) ApplyMutation(ctx context.Context, m *domain.Mutation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mutation: %w", err)
	}
	defer tx.Rollback()

	a := m.Auction
	query := `
        UPDATE auctions SET
            current_bid = ?, current_bidder_id = ?, bid_count = ?, status = ?,
            seller_approved = ?, admin_approved = ?, winner_id = ?, purchase_order_ref = ?,
            reject_reason = ?, version = ?, updated_at = ?
        WHERE id = ? AND version = ?
    `
	res, err := tx.ExecContext(ctx, query,
		a.CurrentBid, a.CurrentBidderID, a.BidCount, int(a.Status),
		a.SellerApproved, a.AdminApproved, a.WinnerID, a.PurchaseOrderRef,
		a.RejectReason, a.Version, a.UpdatedAt,
		a.ID, m.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update auction %s: %w", a.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auction %s: %w", a.ID, err)
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}

	if m.Ledger != nil {
		if err := applyLedger(ctx, tx, a.ID, m.Ledger); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mutation for auction %s: %w", a.ID, err)
	}
	return nil
}
