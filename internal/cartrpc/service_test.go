package cartrpc

import (
	"context"
	"net"
	"testing"

	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/stores/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T) (*Client, *memory.Store) {
	t.Helper()
	st := memory.New()
	cc, err := cart.NewConf(st, st)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer()
	RegisterCartItemServiceServer(srv, NewCartItemServiceHandler(cc))
	go func() { _ = srv.Serve(lis) }()

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return client, st
}

func TestGetCartDetails(t *testing.T) {
	client, st := startServer(t)
	ctx := context.Background()

	p, err := st.PutProduct(ctx, catalog.Product{Name: "kettle", Price: decimal.RequireFromString("99.50"), Stock: 4, IsActive: true})
	require.NoError(t, err)
	_, err = st.AddLine(ctx, cart.Line{UserID: "u1", ProductID: p.ID, Quantity: 2, Specs: map[string]string{"color": "red"}}, p.Stock)
	require.NoError(t, err)

	resp, err := client.GetCartDetails(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, resp.CartItems, 1)
	got := resp.CartItems[0]
	assert.Equal(t, p.ID, got.ProductID)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "kettle", got.Name)
	assert.Equal(t, "red", got.Specs["color"])
	assert.True(t, got.Price.Equal(decimal.RequireFromString("99.5")))

	empty, err := client.GetCartDetails(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty.CartItems)
}

func TestGetCartDetails_RequiresUser(t *testing.T) {
	client, _ := startServer(t)

	_, err := client.GetCartDetails(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCodec_NotRegisteredGlobally(t *testing.T) {
	assert.Nil(t, encoding.GetCodec("json"))
	assert.Nil(t, encoding.GetCodec(codecName))
}
