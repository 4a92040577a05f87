package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/nft-marketplace/internal/adapter/registry"
	"github.com/rl1809/nft-marketplace/internal/adapter/wallet"
	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

// DevHandler exposes the in-process registry and wallet so a local deployment
// can mint and approve assets without an external chain.
type DevHandler struct {
	registry *registry.Memory
	wallet   *wallet.Memory
	operator domain.Account
	logger   *zap.Logger
}

type MintHTTPRequest struct {
	Collection string `json:"collection" binding:"required"`
	TokenID    string `json:"token_id" binding:"required"`
	Owner      string `json:"owner" binding:"required"`
}

// ApproveHTTPRequest approves Operator for one token. An empty Operator means
// the marketplace operator.
type ApproveHTTPRequest struct {
	Collection string `json:"collection" binding:"required"`
	TokenID    string `json:"token_id" binding:"required"`
	Operator   string `json:"operator"`
}

type AssetHTTPResponse struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
	Owner      string `json:"owner"`
	Approved   string `json:"approved"`
}

func NewDevHandler(reg *registry.Memory, w *wallet.Memory, operator domain.Account, logger *zap.Logger) *DevHandler {
	return &DevHandler{registry: reg, wallet: w, operator: operator, logger: logger}
}

func (h *DevHandler) Mint(c *gin.Context) {
	var req MintHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errInvalidBody)
		return
	}

	key := domain.NewListingKey(req.Collection, req.TokenID)
	if !key.Valid() {
		h.writeError(c, errInvalidKey)
		return
	}
	owner := domain.NewAccount(req.Owner)
	if err := h.registry.Mint(c.Request.Context(), key, owner); err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Info("asset minted", zap.Stringer("key", key), zap.Stringer("owner", owner))
	c.JSON(http.StatusCreated, AssetHTTPResponse{Collection: key.Collection, TokenID: key.TokenID, Owner: owner.String()})
}

func (h *DevHandler) Approve(c *gin.Context) {
	caller := domain.NewAccount(c.GetHeader(AccountHeader))
	if caller.IsZero() {
		h.writeError(c, errMissingAccount)
		return
	}

	var req ApproveHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, errInvalidBody)
		return
	}

	operator := h.operator
	if req.Operator != "" {
		operator = domain.NewAccount(req.Operator)
	}

	key := domain.NewListingKey(req.Collection, req.TokenID)
	if !key.Valid() {
		h.writeError(c, errInvalidKey)
		return
	}
	if err := h.registry.Approve(c.Request.Context(), caller, key, operator); err != nil {
		h.writeError(c, err)
		return
	}

	h.asset(c, key, http.StatusOK)
}

func (h *DevHandler) GetAsset(c *gin.Context) {
	key := domain.NewListingKey(c.Param("collection"), c.Param("token_id"))
	if !key.Valid() {
		h.writeError(c, errInvalidKey)
		return
	}
	h.asset(c, key, http.StatusOK)
}

func (h *DevHandler) GetWallet(c *gin.Context) {
	account := domain.NewAccount(c.Param("account"))
	balance, err := h.wallet.Balance(c.Request.Context(), account)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProceedsHTTPResponse{Account: account.String(), Amount: balance.String()})
}

func (h *DevHandler) asset(c *gin.Context, key domain.ListingKey, status int) {
	ctx := c.Request.Context()
	owner, err := h.registry.OwnerOf(ctx, key)
	if err != nil {
		h.writeError(c, err)
		return
	}
	approved, err := h.registry.GetApproved(ctx, key)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, AssetHTTPResponse{
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Owner:      owner.String(),
		Approved:   approved.String(),
	})
}

func (h *DevHandler) writeError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, registry.ErrUnknownAsset):
		status, code = http.StatusNotFound, "UnknownAsset"
	case errors.Is(err, registry.ErrAlreadyMinted):
		status, code = http.StatusConflict, "AlreadyMinted"
	case errors.Is(err, registry.ErrNotAuthorized):
		status, code = http.StatusForbidden, "NotAuthorized"
	case errors.Is(err, registry.ErrZeroAccount):
		status, code = http.StatusBadRequest, "ZeroAccount"
	default:
		status, code = httpStatus(err)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("dev request failed", zap.String("path", c.FullPath()), zap.Error(err))
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorHTTPResponse{Error: code, Message: message})
}
