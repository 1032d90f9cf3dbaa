package handlers

import (
	"net/http"
	"strconv"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	bidService     *services.BidService
	approvals      *services.ApprovalService
	identity       domain.IdentityDirectory
	log            logger.Logger
}

type CreateAuctionRequest struct {
	MaterialID    string          `json:"material_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type AuctionResponse struct {
	AuctionID        string               `json:"auction_id"`
	MaterialID       string               `json:"material_id"`
	SellerID         string               `json:"seller_id"`
	StartingPrice    decimal.Decimal      `json:"starting_price"`
	CurrentBid       decimal.Decimal      `json:"current_bid"`
	CurrentBidderID  string               `json:"current_bidder_id,omitempty"`
	BidCount         int                  `json:"bid_count"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          time.Time            `json:"end_time"`
	Status           domain.AuctionStatus `json:"status"`
	SellerApproved   bool                 `json:"seller_approved"`
	AdminApproved    bool                 `json:"admin_approved"`
	WinnerID         string               `json:"winner_id,omitempty"`
	PurchaseOrderRef string               `json:"purchase_order_ref,omitempty"`
	RejectReason     string               `json:"reject_reason,omitempty"`
	Version          int64                `json:"version"`
	Warning          string               `json:"warning,omitempty"`
}

func newAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:        a.ID,
		MaterialID:       a.MaterialID,
		SellerID:         a.SellerID,
		StartingPrice:    a.StartingPrice,
		CurrentBid:       a.CurrentBid,
		CurrentBidderID:  a.CurrentBidderID,
		BidCount:         a.BidCount,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Status:           a.Status,
		SellerApproved:   a.SellerApproved,
		AdminApproved:    a.AdminApproved,
		WinnerID:         a.WinnerID,
		PurchaseOrderRef: a.PurchaseOrderRef,
		RejectReason:     a.RejectReason,
		Version:          a.Version,
	}
}

func NewAuctionHandler(auctionManager *services.AuctionManager, bidService *services.BidService,
	approvals *services.ApprovalService, identity domain.IdentityDirectory, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		bidService:     bidService,
		approvals:      approvals,
		identity:       identity,
		log:            log.With("component", "auction_api"),
	}
}

// Register mounts the auction API on e under /api/v1.
func (h *AuctionHandler) Register(e *echo.Echo) {
	api := e.Group("/api/v1")
	withActor := RequireActor(h.identity, h.log)

	api.GET("/auctions", h.ListAuctions)
	api.GET("/auctions/:id", h.GetAuction)
	api.GET("/auctions/:id/bids", h.GetBidHistory)
	api.GET("/auctions/:id/bids/:bidId", h.GetBid)

	api.POST("/auctions", h.CreateAuction, withActor)
	api.POST("/auctions/:id/publish", h.Publish, withActor)
	api.POST("/auctions/:id/bids", h.PlaceBid, withActor)
	api.DELETE("/auctions/:id/bids/:bidId", h.DeleteBid, withActor)
	api.POST("/auctions/:id/seller-accept", h.SellerAccept, withActor)
	api.POST("/auctions/:id/admin-approve", h.AdminApprove, withActor)
	api.POST("/auctions/:id/admin-reject", h.AdminReject, withActor)
	api.POST("/auctions/:id/cancel", h.Cancel, withActor)
}

func (h *AuctionHandler) fail(c echo.Context, op string, err error) error {
	if domain.ErrorCode(err) == "internal" {
		h.log.Error("Request failed", "op", op, "auction_id", c.Param("id"), "error", err)
	} else {
		h.log.Info("Request refused", "op", op, "auction_id", c.Param("id"), "reason", domain.ErrorCode(err))
	}
	return respondError(c, err)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	actor := actorFrom(c)
	h.log.Info("CreateAuction endpoint called", "actor", actor.ID, "remote_addr", c.RealIP())

	if actor.Role != domain.RoleSeller && !actor.IsAdmin() {
		return respondError(c, domain.ErrNotAuthorized)
	}

	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return badRequest(c, "Invalid request body")
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), services.Listing{
		MaterialID:    req.MaterialID,
		SellerID:      actor.ID,
		StartingPrice: req.StartingPrice,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		return h.fail(c, "create", err)
	}
	return c.JSON(http.StatusCreated, newAuctionResponse(auction))
}

func (h *AuctionHandler) Publish(c echo.Context) error {
	auction, err := h.auctionManager.Publish(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, "publish", err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	snapshot, err := h.auctionManager.GetSnapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get", err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	var status *domain.AuctionStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := domain.ParseAuctionStatus(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		status = &parsed
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "limit must be a number")
		}
		limit = n
	}

	auctions, err := h.auctionManager.ListAuctions(c.Request().Context(), status, limit)
	if err != nil {
		return h.fail(c, "list", err)
	}

	resp := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, newAuctionResponse(a))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) GetBidHistory(c echo.Context) error {
	includeRejected := false
	if raw := c.QueryParam("include_rejected"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "include_rejected must be a boolean")
		}
		includeRejected = v
	}

	bids, err := h.bidService.GetBidHistory(c.Request().Context(), c.Param("id"), includeRejected)
	if err != nil {
		return h.fail(c, "bid_history", err)
	}
	if bids == nil {
		bids = []*domain.Bid{}
	}
	return c.JSON(http.StatusOK, bids)
}

func (h *AuctionHandler) GetBid(c echo.Context) error {
	bid, err := h.bidService.GetBid(c.Request().Context(), c.Param("id"), c.Param("bidId"))
	if err != nil {
		return h.fail(c, "get_bid", err)
	}
	return c.JSON(http.StatusOK, bid)
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), c.Param("id"), actorFrom(c).ID, req.Amount)
	if err != nil {
		return h.fail(c, "place_bid", err)
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *AuctionHandler) DeleteBid(c echo.Context) error {
	auction, err := h.bidService.DeleteBid(c.Request().Context(), c.Param("id"), c.Param("bidId"), actorFrom(c))
	if err != nil {
		return h.fail(c, "delete_bid", err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) SellerAccept(c echo.Context) error {
	auction, err := h.approvals.SellerAccept(c.Request().Context(), c.Param("id"), actorFrom(c).ID)
	if err != nil {
		return h.fail(c, "seller_accept", err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

// AdminApprove reports a failed purchase-order request as a warning: the
// approval itself has already committed.
func (h *AuctionHandler) AdminApprove(c echo.Context) error {
	auction, err := h.approvals.AdminApprove(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil && auction == nil {
		return h.fail(c, "admin_approve", err)
	}

	resp := newAuctionResponse(auction)
	if err != nil {
		h.log.Error("Approval committed without purchase order", "auction_id", auction.ID, "error", err)
		resp.Warning = "purchase order request pending"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuctionHandler) AdminReject(c echo.Context) error {
	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	auction, err := h.approvals.AdminReject(c.Request().Context(), c.Param("id"), actorFrom(c), req.Reason)
	if err != nil {
		return h.fail(c, "admin_reject", err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) Cancel(c echo.Context) error {
	auction, err := h.approvals.Cancel(c.Request().Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		return h.fail(c, "cancel", err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}
