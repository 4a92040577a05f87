package marketpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const ServiceName = "marketplace.v1.Marketplace"

const (
	Marketplace_ListItem_FullMethodName         = "/" + ServiceName + "/ListItem"
	Marketplace_CancelListing_FullMethodName    = "/" + ServiceName + "/CancelListing"
	Marketplace_UpdateListing_FullMethodName    = "/" + ServiceName + "/UpdateListing"
	Marketplace_BuyItem_FullMethodName          = "/" + ServiceName + "/BuyItem"
	Marketplace_WithdrawProceeds_FullMethodName = "/" + ServiceName + "/WithdrawProceeds"
	Marketplace_GetListing_FullMethodName       = "/" + ServiceName + "/GetListing"
	Marketplace_GetProceeds_FullMethodName      = "/" + ServiceName + "/GetProceeds"
)

type MarketplaceClient interface {
	ListItem(ctx context.Context, in *ListItemRequest, opts ...grpc.CallOption) (*Reply, error)
	CancelListing(ctx context.Context, in *CancelListingRequest, opts ...grpc.CallOption) (*Reply, error)
	UpdateListing(ctx context.Context, in *UpdateListingRequest, opts ...grpc.CallOption) (*Reply, error)
	BuyItem(ctx context.Context, in *BuyItemRequest, opts ...grpc.CallOption) (*Reply, error)
	WithdrawProceeds(ctx context.Context, in *WithdrawProceedsRequest, opts ...grpc.CallOption) (*Reply, error)
	GetListing(ctx context.Context, in *GetListingRequest, opts ...grpc.CallOption) (*GetListingResponse, error)
	GetProceeds(ctx context.Context, in *GetProceedsRequest, opts ...grpc.CallOption) (*GetProceedsResponse, error)
}

type marketplaceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketplaceClient(cc grpc.ClientConnInterface) MarketplaceClient {
	return &marketplaceClient{cc: cc}
}

func (c *marketplaceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	req, err := toMessage(in)
	if err != nil {
		return err
	}
	resp, err := newMessage(out)
	if err != nil {
		return err
	}
	if err := c.cc.Invoke(ctx, method, req, resp, opts...); err != nil {
		return err
	}
	return fromMessage(resp, out)
}

func (c *marketplaceClient) ListItem(ctx context.Context, in *ListItemRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, Marketplace_ListItem_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketplaceClient) CancelListing(ctx context.Context, in *CancelListingRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, Marketplace_CancelListing_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketplaceClient) UpdateListing(ctx context.Context, in *UpdateListingRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, Marketplace_UpdateListing_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketplaceClient) BuyItem(ctx context.Context, in *BuyItemRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, Marketplace_BuyItem_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketplaceClient) WithdrawProceeds(ctx context.Context, in *WithdrawProceedsRequest, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	if err := c.invoke(ctx, Marketplace_WithdrawProceeds_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketplaceClient) GetListing(ctx context.Context, in *GetListingRequest, opts ...grpc.CallOption) (*GetListingResponse, error) {
	out := new(GetListingResponse)
	if err := c.invoke(ctx, Marketplace_GetListing_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *marketplaceClient) GetProceeds(ctx context.Context, in *GetProceedsRequest, opts ...grpc.CallOption) (*GetProceedsResponse, error) {
	out := new(GetProceedsResponse)
	if err := c.invoke(ctx, Marketplace_GetProceeds_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketplaceServer is the server API for the Marketplace service. Embed
// UnimplementedMarketplaceServer for forward compatibility.
type MarketplaceServer interface {
	ListItem(context.Context, *ListItemRequest) (*Reply, error)
	CancelListing(context.Context, *CancelListingRequest) (*Reply, error)
	UpdateListing(context.Context, *UpdateListingRequest) (*Reply, error)
	BuyItem(context.Context, *BuyItemRequest) (*Reply, error)
	WithdrawProceeds(context.Context, *WithdrawProceedsRequest) (*Reply, error)
	GetListing(context.Context, *GetListingRequest) (*GetListingResponse, error)
	GetProceeds(context.Context, *GetProceedsRequest) (*GetProceedsResponse, error)
}

type UnimplementedMarketplaceServer struct{}

func (UnimplementedMarketplaceServer) ListItem(context.Context, *ListItemRequest) (*Reply, error) {
	return nil, status.Error(codes.Unimplemented, "method ListItem not implemented")
}
func (UnimplementedMarketplaceServer) CancelListing(context.Context, *CancelListingRequest) (*Reply, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelListing not implemented")
}
func (UnimplementedMarketplaceServer) UpdateListing(context.Context, *UpdateListingRequest) (*Reply, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateListing not implemented")
}
func (UnimplementedMarketplaceServer) BuyItem(context.Context, *BuyItemRequest) (*Reply, error) {
	return nil, status.Error(codes.Unimplemented, "method BuyItem not implemented")
}
func (UnimplementedMarketplaceServer) WithdrawProceeds(context.Context, *WithdrawProceedsRequest) (*Reply, error) {
	return nil, status.Error(codes.Unimplemented, "method WithdrawProceeds not implemented")
}
func (UnimplementedMarketplaceServer) GetListing(context.Context, *GetListingRequest) (*GetListingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetListing not implemented")
}
func (UnimplementedMarketplaceServer) GetProceeds(context.Context, *GetProceedsRequest) (*GetProceedsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProceeds not implemented")
}

func RegisterMarketplaceServer(s grpc.ServiceRegistrar, srv MarketplaceServer) {
	s.RegisterService(&Marketplace_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to grpc.MethodHandler. Requests are
// decoded into dynamic messages and converted to and from the typed structs.
func unaryHandler[Req any, Resp any](fullMethod string, call func(MarketplaceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in, err := newMessage(new(Req))
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed := new(Req)
			if err := fromMessage(req.(protoreflect.ProtoMessage), typed); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			resp, err := call(srv.(MarketplaceServer), ctx, typed)
			if err != nil {
				return nil, err
			}
			out, err := toMessage(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

var Marketplace_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListItem", Handler: unaryHandler(Marketplace_ListItem_FullMethodName, MarketplaceServer.ListItem)},
		{MethodName: "CancelListing", Handler: unaryHandler(Marketplace_CancelListing_FullMethodName, MarketplaceServer.CancelListing)},
		{MethodName: "UpdateListing", Handler: unaryHandler(Marketplace_UpdateListing_FullMethodName, MarketplaceServer.UpdateListing)},
		{MethodName: "BuyItem", Handler: unaryHandler(Marketplace_BuyItem_FullMethodName, MarketplaceServer.BuyItem)},
		{MethodName: "WithdrawProceeds", Handler: unaryHandler(Marketplace_WithdrawProceeds_FullMethodName, MarketplaceServer.WithdrawProceeds)},
		{MethodName: "GetListing", Handler: unaryHandler(Marketplace_GetListing_FullMethodName, MarketplaceServer.GetListing)},
		{MethodName: "GetProceeds", Handler: unaryHandler(Marketplace_GetProceeds_FullMethodName, MarketplaceServer.GetProceeds)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}
