package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"auction-engine/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const bidIncrementRuleKey = "bid_increment_rule"

var hundred = decimal.NewFromInt(100)

type BidIncrementRule struct {
	IncrementPercent decimal.Decimal `json:"increment_percent"`
}

// BiddingRuleDaoImpl keeps the increment rule in Redis so every instance
// computes the same minimum bid. A nil client serves the default rule only.
type BiddingRuleDaoImpl struct {
	client   *redis.Client
	defaults BidIncrementRule
	mu       sync.RWMutex
	rule     *BidIncrementRule
}

func NewBiddingRuleDao(client *redis.Client, defaultPercent decimal.Decimal) *BiddingRuleDaoImpl {
	return &BiddingRuleDaoImpl{
		client:   client,
		defaults: BidIncrementRule{IncrementPercent: defaultPercent},
	}
}

func (v *BiddingRuleDaoImpl) LoadRules(ctx context.Context) error {
	if v.client == nil {
		v.setRule(v.defaults)
		return nil
	}

	data, err := v.client.Get(ctx, bidIncrementRuleKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			v.setRule(v.defaults)
			return v.saveRules(ctx)
		}
		return err
	}

	var rule BidIncrementRule
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		return err
	}
	if !rule.IncrementPercent.IsPositive() {
		return errors.New("bid increment percent must be positive")
	}

	v.setRule(rule)
	return nil
}

func (v *BiddingRuleDaoImpl) saveRules(ctx context.Context) error {
	data, err := json.Marshal(v.currentRule())
	if err != nil {
		return err
	}

	return v.client.Set(ctx, bidIncrementRuleKey, string(data), 0).Err()
}

func (v *BiddingRuleDaoImpl) setRule(rule BidIncrementRule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rule = &rule
}

func (v *BiddingRuleDaoImpl) currentRule() BidIncrementRule {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.rule == nil {
		return v.defaults
	}
	return *v.rule
}

// MinimumBid is the starting price for the first bid, otherwise the current
// bid raised by the increment percent, rounded up to whole cents.
func (v *BiddingRuleDaoImpl) MinimumBid(auction *domain.Auction) decimal.Decimal {
	if !auction.HasBids() {
		return auction.StartingPrice
	}

	factor := decimal.NewFromInt(1).Add(v.currentRule().IncrementPercent.Div(hundred))
	return auction.CurrentBid.Mul(factor).RoundCeil(2)
}
