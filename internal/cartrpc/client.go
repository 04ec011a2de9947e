package cartrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without TLS. Extra options are applied after the
// defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to cart service at %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) GetCartDetails(ctx context.Context, userID string) (*GetCartDetailsResponse, error) {
	out := new(GetCartDetailsResponse)
	if err := c.conn.Invoke(ctx, getCartDetailsMethod, &GetCartDetailsRequest{UserID: userID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
