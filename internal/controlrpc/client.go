package controlrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"jobmate/apply-service/internal/queue"
)

// Dial connects to a controller at addr. The connection is plaintext; the
// controller is meant to listen on loopback.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial controller %s: %w", addr, err)
	}
	return cc, nil
}

// Client is the typed controller client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName))
}

func (c *Client) snapshot(ctx context.Context, method string) (*queue.Snapshot, error) {
	out := new(queue.Snapshot)
	if err := c.invoke(ctx, method, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Discover(ctx context.Context) (*DiscoverReply, error) {
	out := new(DiscoverReply)
	if err := c.invoke(ctx, "Discover", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) LoadMore(ctx context.Context) (*DiscoverReply, error) {
	out := new(DiscoverReply)
	if err := c.invoke(ctx, "LoadMore", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Start(ctx context.Context) (*queue.Snapshot, error)  { return c.snapshot(ctx, "Start") }
func (c *Client) Pause(ctx context.Context) (*queue.Snapshot, error)  { return c.snapshot(ctx, "Pause") }
func (c *Client) Resume(ctx context.Context) (*queue.Snapshot, error) { return c.snapshot(ctx, "Resume") }
func (c *Client) Stop(ctx context.Context) (*queue.Snapshot, error)   { return c.snapshot(ctx, "Stop") }
func (c *Client) Status(ctx context.Context) (*queue.Snapshot, error) { return c.snapshot(ctx, "Status") }

func (c *Client) AutoDiscover(ctx context.Context, req *AutoDiscoverRequest) (*queue.Snapshot, error) {
	out := new(queue.Snapshot)
	if err := c.invoke(ctx, "AutoDiscover", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchStream receives the events of a Watch call.
type WatchStream interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type watchClient struct{ grpc.ClientStream }

func (w *watchClient) Recv() (*Event, error) {
	e := new(Event)
	if err := w.ClientStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Watch opens an event stream. Cancel ctx to close it.
func (c *Client) Watch(ctx context.Context, req *WatchRequest) (WatchStream, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"), grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &watchClient{stream}, nil
}
