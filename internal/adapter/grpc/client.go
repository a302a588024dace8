package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/epandurski/swpt-debtors/internal/domain"
)

// SignalClient publishes outbox messages by calling the Deliver method of
// a remote service
type SignalClient struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// NewSignalClient connects to the service at target
func NewSignalClient(target string) (*SignalClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &SignalClient{cc: conn, conn: conn}, nil
}

// NewSignalClientWithConn creates a SignalClient on an existing connection.
// Closing the client does not close cc.
func NewSignalClientWithConn(cc grpc.ClientConnInterface) *SignalClient {
	return &SignalClient{cc: cc}
}

// Publish sends the message wrapped in a {"kind", "payload"} envelope
func (c *SignalClient) Publish(ctx context.Context, msg *domain.OutboxMessage) error {
	in, err := toStruct(&deliverRequest{Kind: msg.Kind, Payload: msg.Payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s signal: %w", msg.Kind, err)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DeliverMethod, in, out); err != nil {
		return fmt.Errorf("failed to deliver %s signal: %w", msg.Kind, err)
	}
	return nil
}

// Close closes the connection created by NewSignalClient
func (c *SignalClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

