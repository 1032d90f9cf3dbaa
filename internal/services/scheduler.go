package services

import (
	"context"
	"errors"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/robfig/cron/v3"
)

// ExpirySweeper opens scheduled auctions and ends expired ones on a cron
// schedule. Only the leader instance sweeps when leader election is wired.
type ExpirySweeper struct {
	cron           *cron.Cron
	spec           string
	batchSize      int
	store          domain.AuctionStore
	auctionMgr     *AuctionManager
	leaderElection domain.LeaderElection
	instanceID     string
	log            logger.Logger
}

var _ domain.Sweeper = (*ExpirySweeper)(nil)

func NewExpirySweeper(store domain.AuctionStore, auctionMgr *AuctionManager, leaderElection domain.LeaderElection,
	instanceID, spec string, batchSize int, log logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		cron:           cron.New(cron.WithSeconds()),
		spec:           spec,
		batchSize:      batchSize,
		store:          store,
		auctionMgr:     auctionMgr,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		log:            log,
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.log.Info("Starting expiry sweeper", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *ExpirySweeper) Stop() error {
	s.log.Info("Stopping expiry sweeper")
	<-s.cron.Stop().Done()
	return nil
}

// Sweep runs one pass. A lost conditional write is left for the next pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	if s.leaderElection != nil {
		isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Failed to check leadership", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	now := s.auctionMgr.sm.Now()

	startable, err := s.store.ListStartable(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("Failed to list startable auctions", "error", err)
	}
	for _, auction := range startable {
		if _, err := s.auctionMgr.StartAuction(ctx, auction); err != nil {
			s.logSkip("start", auction, err)
		}
	}

	expired, err := s.store.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error("Failed to list expired auctions", "error", err)
		return
	}
	for _, auction := range expired {
		if _, err := s.auctionMgr.EndAuction(ctx, auction); err != nil {
			s.logSkip("end", auction, err)
		}
	}
}

func (s *ExpirySweeper) logSkip(op string, auction *domain.Auction, err error) {
	if errors.Is(err, domain.ErrStaleState) {
		s.log.Debug("Auction changed during sweep, retrying next pass", "op", op, "auction_id", auction.ID)
		return
	}
	s.log.Error("Sweep step failed", "op", op, "auction_id", auction.ID, "error", err)
}
