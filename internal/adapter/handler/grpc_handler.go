package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/nft-marketplace/internal/adapter/handler/marketpb"
	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/core/service"
)

type GRPCHandler struct {
	marketpb.UnimplementedMarketplaceServer
	marketplace *service.MarketplaceService
	logger      *zap.Logger
}

func NewGRPCHandler(marketplace *service.MarketplaceService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{marketplace: marketplace, logger: logger}
}

func (h *GRPCHandler) ListItem(ctx context.Context, req *marketpb.ListItemRequest) (*marketpb.Reply, error) {
	key := domain.NewListingKey(req.Collection, req.TokenId)
	if !key.Valid() {
		return h.reply(errInvalidKey, ""), nil
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		return h.reply(errInvalidAmount, ""), nil
	}
	err = h.marketplace.ListItem(ctx, key, price, domain.NewAccount(req.Caller))
	return h.reply(err, "item listed"), nil
}

func (h *GRPCHandler) CancelListing(ctx context.Context, req *marketpb.CancelListingRequest) (*marketpb.Reply, error) {
	key := domain.NewListingKey(req.Collection, req.TokenId)
	if !key.Valid() {
		return h.reply(errInvalidKey, ""), nil
	}
	err := h.marketplace.CancelListing(ctx, key, domain.NewAccount(req.Caller))
	return h.reply(err, "listing canceled"), nil
}

func (h *GRPCHandler) UpdateListing(ctx context.Context, req *marketpb.UpdateListingRequest) (*marketpb.Reply, error) {
	key := domain.NewListingKey(req.Collection, req.TokenId)
	if !key.Valid() {
		return h.reply(errInvalidKey, ""), nil
	}
	price, err := domain.ParseAmount(req.NewPrice)
	if err != nil {
		return h.reply(errInvalidAmount, ""), nil
	}
	err = h.marketplace.UpdateListing(ctx, key, price, domain.NewAccount(req.Caller))
	return h.reply(err, "listing updated"), nil
}

func (h *GRPCHandler) BuyItem(ctx context.Context, req *marketpb.BuyItemRequest) (*marketpb.Reply, error) {
	key := domain.NewListingKey(req.Collection, req.TokenId)
	if !key.Valid() {
		return h.reply(errInvalidKey, ""), nil
	}
	paid, err := domain.ParseAmount(req.PaidAmount)
	if err != nil || paid.IsNegative() {
		return h.reply(errInvalidAmount, ""), nil
	}

	err = h.marketplace.Once(ctx, req.RequestId, func() error {
		return h.marketplace.BuyItem(ctx, key, paid, domain.NewAccount(req.Buyer))
	})
	return h.reply(err, "item bought"), nil
}

func (h *GRPCHandler) WithdrawProceeds(ctx context.Context, req *marketpb.WithdrawProceedsRequest) (*marketpb.Reply, error) {
	err := h.marketplace.Once(ctx, req.RequestId, func() error {
		return h.marketplace.WithdrawProceeds(ctx, domain.NewAccount(req.Caller))
	})
	return h.reply(err, "proceeds withdrawn"), nil
}

func (h *GRPCHandler) GetListing(ctx context.Context, req *marketpb.GetListingRequest) (*marketpb.GetListingResponse, error) {
	key := domain.NewListingKey(req.Collection, req.TokenId)
	if !key.Valid() {
		return nil, status.Error(codes.InvalidArgument, errInvalidKey.Error())
	}
	listing, err := h.marketplace.GetListing(ctx, key)
	if err != nil {
		h.logger.Error("get listing failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &marketpb.GetListingResponse{
		Collection: listing.Key.Collection,
		TokenId:    listing.Key.TokenID,
		Seller:     listing.Seller.String(),
		Price:      listing.Price.String(),
	}, nil
}

func (h *GRPCHandler) GetProceeds(ctx context.Context, req *marketpb.GetProceedsRequest) (*marketpb.GetProceedsResponse, error) {
	account := domain.NewAccount(req.Account)
	amount, err := h.marketplace.GetProceeds(ctx, account)
	if err != nil {
		h.logger.Error("get proceeds failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &marketpb.GetProceedsResponse{Account: account.String(), Amount: amount.String()}, nil
}

// reply reports business failures in-band, the same way for every method.
func (h *GRPCHandler) reply(err error, okMessage string) *marketpb.Reply {
	if err == nil {
		return &marketpb.Reply{Success: true, Message: okMessage}
	}

	_, code := httpStatus(err)
	message := err.Error()
	if code == "Internal" {
		h.logger.Error("grpc request failed", zap.Error(err))
		message = "internal error"
	}
	return &marketpb.Reply{Success: false, Code: code, Message: message}
}
