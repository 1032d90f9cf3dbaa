package handlers

import (
	"errors"
	"net/http"

	"auction-engine/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error      string           `json:"error"`
	Code       string           `json:"code"`
	MinimumBid *decimal.Decimal `json:"minimum_bid,omitempty"`
}

var codeStatus = map[string]int{
	"auction_not_found":          http.StatusNotFound,
	"bid_not_found":              http.StatusNotFound,
	"auction_not_accepting_bids": http.StatusGone,
	"bidding_closed":             http.StatusGone,
	"bidder_not_eligible":        http.StatusForbidden,
	"not_authorized":             http.StatusForbidden,
	"actor_not_found":            http.StatusForbidden,
	"bid_too_low":                http.StatusUnprocessableEntity,
	"concurrent_bid_conflict":    http.StatusConflict,
	"stale_state":                http.StatusConflict,
	"illegal_transition":         http.StatusConflict,
	"auction_has_no_bids":        http.StatusConflict,
	"auction_has_bids":           http.StatusConflict,
	"invalid_auction":            http.StatusBadRequest,
	"invalid_bid":                http.StatusBadRequest,
}

// respondError maps a service error onto a status and a stable code.
// Internal failures are logged by the caller and never leak their text.
func respondError(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	status, ok := codeStatus[code]
	if !ok {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: code})
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var conflict *domain.ConcurrentBidConflictError
	var tooLow *domain.BidTooLowError
	switch {
	case errors.As(err, &conflict):
		resp.Error = domain.ErrConcurrentBidConflict.Error()
		resp.MinimumBid = &conflict.Minimum
	case errors.As(err, &tooLow):
		resp.MinimumBid = &tooLow.Minimum
	}
	return c.JSON(status, resp)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "invalid_request"})
}
