package domain

var transitions = map[AuctionStatus][]AuctionStatus{
	AuctionDraft:     {AuctionScheduled, AuctionActive, AuctionCancelled},
	AuctionScheduled: {AuctionActive, AuctionCancelled},
	AuctionActive:    {AuctionActive, AuctionEnded, AuctionSellerApproved, AuctionCancelled},
	// self-loop is a ledger correction (bid deletion) that keeps the status
	AuctionSellerApproved: {AuctionSellerApproved, AuctionAdminApproved, AuctionCancelled},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to AuctionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for statuses with no outgoing transitions.
func (s AuctionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AcceptsBids is true only while the auction is live.
func (s AuctionStatus) AcceptsBids() bool {
	return s == AuctionActive
}
