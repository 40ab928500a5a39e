// Package remote implements a strategy served by an external gRPC
// recommendation service. Messages are google.protobuf.Struct values so the
// service can be written in any language without shared generated code.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ashureev/connsolve/internal/strategy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// Name is the strategy identity.
	Name = "remote"
	// GenerateMethod is the full gRPC method the service must implement.
	GenerateMethod = "/connsolve.v1.StrategyService/Generate"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// Config holds configuration for the gRPC client.
type Config struct {
	Address          string
	Model            string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// Dialer overrides the network dialer, mainly for tests.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
	Logger *slog.Logger
}

// DefaultConfig returns default configuration for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Client is the remote strategy.
type Client struct {
	conn   *grpc.ClientConn
	addr   string
	model  string
	logger *slog.Logger
}

var _ strategy.Strategy = (*Client)(nil)

// New connects to the service and waits until it is ready.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("remote strategy address is empty")
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	}
	if cfg.Dialer != nil {
		opts = append(opts, grpc.WithContextDialer(cfg.Dialer))
	}

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to strategy service at %s: %w", cfg.Address, err)
	}

	// Fail fast on a bad endpoint.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("strategy service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to strategy service", "address", cfg.Address)
	return &Client{conn: conn, addr: cfg.Address, model: cfg.Model, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

func (c *Client) Name() string  { return Name }
func (c *Client) Model() string { return c.model }

// Generate calls the service once and returns its answer as a payload.
func (c *Client) Generate(ctx context.Context, req strategy.Request) (strategy.Response, error) {
	in, err := encodeRequest(req)
	if err != nil {
		return strategy.Response{}, err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GenerateMethod, in, out); err != nil {
		c.logger.Warn("remote strategy call failed", "address", c.addr, "error", err)
		return strategy.Response{}, fmt.Errorf("remote generate: %w", err)
	}
	return strategy.Response{Payload: out.AsMap()}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

func encodeRequest(req strategy.Request) (*structpb.Struct, error) {
	attempts := make([]any, 0, len(req.Attempts))
	for _, a := range req.Attempts {
		attempts = append(attempts, map[string]any{
			"words":   toAny(a.Words),
			"outcome": string(a.Outcome),
		})
	}
	s, err := structpb.NewStruct(map[string]any{
		"words":    toAny(req.Words),
		"attempts": attempts,
		"context":  req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("encode remote request: %w", err)
	}
	return s, nil
}

func toAny(words []string) []any {
	out := make([]any, len(words))
	for i, w := range words {
		out[i] = w
	}
	return out
}
