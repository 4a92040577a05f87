package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/core/service"
)

// AccountHeader carries the caller identity. It is set by the trusted front door.
const AccountHeader = "X-Account"

var (
	errMissingAccount = errors.New("missing " + AccountHeader + " header")
	errInvalidBody    = errors.New("invalid request body")
	errInvalidAmount  = errors.New("invalid amount")
	errInvalidKey     = errors.New("invalid listing key")
)

type HTTPHandler struct {
	marketplace *service.MarketplaceService
	logger      *zap.Logger
}

type ListItemHTTPRequest struct {
	Collection string `json:"collection" binding:"required"`
	TokenID    string `json:"token_id" binding:"required"`
	Price      string `json:"price" binding:"required"`
}

type UpdateListingHTTPRequest struct {
	Price string `json:"price" binding:"required"`
}

type BuyItemHTTPRequest struct {
	RequestID  string `json:"request_id"`
	PaidAmount string `json:"paid_amount" binding:"required"`
}

type WithdrawHTTPRequest struct {
	RequestID string `json:"request_id"`
}

type ListingHTTPResponse struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Seller     string `json:"seller"`
	Price      string `json:"price"`
}

type ProceedsHTTPResponse struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type ErrorHTTPResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHTTPHandler(marketplace *service.MarketplaceService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{marketplace: marketplace, logger: logger}
}

func (h *HTTPHandler) ListItem(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req ListItemHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errInvalidBody)
		return
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		h.writeError(c, errInvalidAmount)
		return
	}

	key := domain.NewListingKey(req.Collection, req.TokenID)
	if !key.Valid() {
		h.writeError(c, errInvalidKey)
		return
	}
	if err := h.marketplace.ListItem(c.Request.Context(), key, price, caller); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listingResponse(domain.Listing{Key: key, Seller: caller, Price: price}))
}

func (h *HTTPHandler) UpdateListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req UpdateListingHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errInvalidBody)
		return
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		h.writeError(c, errInvalidAmount)
		return
	}

	key, ok := h.listingKey(c)
	if !ok {
		return
	}
	if err := h.marketplace.UpdateListing(c.Request.Context(), key, price, caller); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, listingResponse(domain.Listing{Key: key, Seller: caller, Price: price}))
}

func (h *HTTPHandler) CancelListing(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	key, ok := h.listingKey(c)
	if !ok {
		return
	}
	if err := h.marketplace.CancelListing(c.Request.Context(), key, caller); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func (h *HTTPHandler) GetListing(c *gin.Context) {
	key, ok := h.listingKey(c)
	if !ok {
		return
	}
	listing, err := h.marketplace.GetListing(c.Request.Context(), key)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingResponse(listing))
}

func (h *HTTPHandler) BuyItem(c *gin.Context) {
	buyer, ok := h.caller(c)
	if !ok {
		return
	}

	var req BuyItemHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errInvalidBody)
		return
	}
	paid, err := domain.ParseAmount(req.PaidAmount)
	if err != nil || paid.IsNegative() {
		h.writeError(c, errInvalidAmount)
		return
	}

	key, ok := h.listingKey(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	err = h.marketplace.Once(ctx, req.RequestID, func() error {
		return h.marketplace.BuyItem(ctx, key, paid, buyer)
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "bought", "collection": key.Collection, "token_id": key.TokenID})
}

func (h *HTTPHandler) GetProceeds(c *gin.Context) {
	account := domain.NewAccount(c.Param("account"))
	amount, err := h.marketplace.GetProceeds(c.Request.Context(), account)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProceedsHTTPResponse{Account: account.String(), Amount: amount.String()})
}

func (h *HTTPHandler) WithdrawProceeds(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req WithdrawHTTPRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, errInvalidBody)
			return
		}
	}

	ctx := c.Request.Context()
	err := h.marketplace.Once(ctx, req.RequestID, func() error {
		return h.marketplace.WithdrawProceeds(ctx, caller)
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) caller(c *gin.Context) (domain.Account, bool) {
	caller := domain.NewAccount(c.GetHeader(AccountHeader))
	if caller.IsZero() {
		h.writeError(c, errMissingAccount)
		return "", false
	}
	return caller, true
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status, code := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorHTTPResponse{Error: code, Message: message})
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingAccount):
		return http.StatusUnauthorized, "MissingAccount"
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, errInvalidAmount):
		return http.StatusBadRequest, "InvalidAmount"
	case errors.Is(err, errInvalidKey):
		return http.StatusBadRequest, "InvalidRequest"
	}

	code := service.Code(err)
	switch {
	case errors.Is(err, service.ErrInvalidPrice):
		return http.StatusBadRequest, code
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrNotApprovedForMarketplace):
		return http.StatusForbidden, code
	case errors.Is(err, service.ErrNotListed):
		return http.StatusNotFound, code
	case errors.Is(err, service.ErrPriceNotMet):
		return http.StatusPaymentRequired, code
	case errors.Is(err, service.ErrAlreadyListed),
		errors.Is(err, service.ErrNoProceeds),
		errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, code
	case errors.Is(err, service.ErrTransferFailed):
		return http.StatusBadGateway, code
	default:
		return http.StatusInternalServerError, code
	}
}

func (h *HTTPHandler) listingKey(c *gin.Context) (domain.ListingKey, bool) {
	key := domain.NewListingKey(c.Param("collection"), c.Param("token_id"))
	if !key.Valid() {
		h.writeError(c, errInvalidKey)
		return domain.ListingKey{}, false
	}
	return key, true
}

func listingResponse(l domain.Listing) ListingHTTPResponse {
	return ListingHTTPResponse{
		Collection: l.Key.Collection,
		TokenID:    l.Key.TokenID,
		Seller:     l.Seller.String(),
		Price:      l.Price.String(),
	}
}
