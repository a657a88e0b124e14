package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/JimLucas95338/farmvision/internal/pipeline"
)

// PublishTrackingMethod es el RPC unario del forwarder:
// rpc PublishTracking(google.protobuf.Struct) returns (google.protobuf.Empty)
const PublishTrackingMethod = "/farmvision.v1.Forwarder/PublishTracking"

type GRPCClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn, timeout: 5 * time.Second}, nil
}

func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

// SendTracking reenvía el tracking como google.protobuf.Struct.
func (g *GRPCClient) SendTracking(ctx context.Context, tr *pipeline.TrackingObject) error {
	if tr == nil {
		return nil
	}
	req, err := pipeline.ToGRPC(tr)
	if err != nil {
		return fmt.Errorf("forwarder: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.conn.Invoke(ctx, PublishTrackingMethod, req, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}
	return nil
}
