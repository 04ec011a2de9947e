// Command cartdetails prints a user's cart as returned by the cart gRPC
// service. The service is located through consul unless -addr is given.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"shop-service/internal/cartrpc"
	"shop-service/internal/consul"
	"shop-service/pkg/logkey"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("cartdetails failed", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cartdetails", flag.ContinueOnError)
	consulAddr := fs.String("consul", os.Getenv("CONSUL_ADDR"), "consul agent address")
	service := fs.String("service", "shop-service-grpc", "consul service name of the cart gRPC server")
	addr := fs.String("addr", "", "cart gRPC address, skips the consul lookup")
	user := fs.String("user", "", "user id whose cart to print")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	target, err := resolve(*addr, *consulAddr, *service)
	if err != nil {
		return err
	}
	client, err := cartrpc.Dial(target)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	resp, err := client.GetCartDetails(ctx, *user)
	if err != nil {
		return fmt.Errorf("fetching cart of %s from %s: %w", *user, target, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func resolve(addr, consulAddr, service string) (string, error) {
	if addr != "" {
		return addr, nil
	}
	if consulAddr == "" {
		return "", errors.New("either -addr or -consul is required")
	}
	client, err := consul.NewClient(consulAddr)
	if err != nil {
		return "", err
	}
	return consul.GetServiceAddress(client, service)
}
