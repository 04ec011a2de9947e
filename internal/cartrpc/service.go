// Package cartrpc exposes a user's cart to other services over gRPC.
package cartrpc

import (
	"context"
	"errors"
	"log/slog"

	"shop-service/internal/cart"
	"shop-service/pkg/logkey"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	serviceName          = "cart.CartItemService"
	getCartDetailsMethod = "/" + serviceName + "/GetCartDetails"
)

type GetCartDetailsRequest struct {
	UserID string `json:"user_id"`
}

type CartItem struct {
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Specs     map[string]string `json:"specs,omitempty"`
	Name      string            `json:"name"`
	Price     decimal.Decimal   `json:"price"`
	Stock     int               `json:"stock"`
}

type GetCartDetailsResponse struct {
	CartItems []CartItem `json:"cart_items"`
}

type CartItemServiceServer interface {
	GetCartDetails(ctx context.Context, req *GetCartDetailsRequest) (*GetCartDetailsResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CartItemServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCartDetails", Handler: getCartDetailsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cartrpc",
}

func getCartDetailsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetCartDetailsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CartItemServiceServer).GetCartDetails(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getCartDetailsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CartItemServiceServer).GetCartDetails(ctx, req.(*GetCartDetailsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// NewServer returns a gRPC server that speaks the JSON codec.
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(append(opts, grpc.ForceServerCodec(codec{}))...)
}

func RegisterCartItemServiceServer(s grpc.ServiceRegistrar, srv CartItemServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

type cartItemService struct {
	cartConf *cart.Conf
}

func NewCartItemServiceHandler(cartConf *cart.Conf) CartItemServiceServer {
	return &cartItemService{cartConf: cartConf}
}

func (c *cartItemService) GetCartDetails(ctx context.Context, req *GetCartDetailsRequest) (*GetCartDetailsResponse, error) {
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	resp, err := c.cartConf.GetActiveCartItems(ctx, req.UserID)
	if err != nil {
		slog.Error("failed to get cart details", slog.String(logkey.UserID, req.UserID), slog.String(logkey.ERROR, err.Error()))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Internal, "failed to get cart details")
	}

	items := make([]CartItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, CartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Specs:     it.Specs,
			Name:      it.Name,
			Price:     it.Price,
			Stock:     it.Stock,
		})
	}
	return &GetCartDetailsResponse{CartItems: items}, nil
}
