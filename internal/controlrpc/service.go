// Package controlrpc is the gRPC controller of a running apply agent. It
// lets a second process discover, start, pause, resume, stop and watch the
// agent's job queue.
//
// Messages travel as JSON (content subtype "json"); the service descriptor
// is declared by hand below.
package controlrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"jobmate/apply-service/internal/model"
	"jobmate/apply-service/internal/queue"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "apply.v1.Controller"

// ─── Messages ────────────────────────────────────────────────────────────────

// DiscoverReply answers Discover and LoadMore.
type DiscoverReply struct {
	Queued int            `json:"queued"`
	Status queue.Snapshot `json:"status"`
}

// AutoDiscoverRequest mirrors queue.AutoOptions. Zero fields take the
// defaults.
type AutoDiscoverRequest struct {
	MaxPages       int   `json:"maxPages,omitempty"`
	MaxJobs        int   `json:"maxJobs,omitempty"`
	PollIntervalMs int64 `json:"pollIntervalMs,omitempty"`
	LowWatermark   int   `json:"lowWatermark,omitempty"`
}

// WatchRequest selects the events a Watch stream carries. An empty Types
// list means every type.
type WatchRequest struct {
	Types []string `json:"types,omitempty"`
}

// Event types carried by Watch.
const (
	EventStatus       = "status"
	EventProgress     = "progress"
	EventJobProcessed = "job_processed"
	EventComplete     = "complete"
)

// Event is one message of a Watch stream.
type Event struct {
	Type     string                 `json:"type"`
	Status   *queue.Snapshot        `json:"status,omitempty"`
	Progress *queue.Progress        `json:"progress,omitempty"`
	Job      *model.Job             `json:"job,omitempty"`
	Stats    *model.QueueStats      `json:"stats,omitempty"`
	At       *timestamppb.Timestamp `json:"at"`
}

// ─── Service descriptor ──────────────────────────────────────────────────────

// ControllerServer is the server API of the controller service.
type ControllerServer interface {
	Discover(context.Context, *emptypb.Empty) (*DiscoverReply, error)
	Start(context.Context, *emptypb.Empty) (*queue.Snapshot, error)
	Pause(context.Context, *emptypb.Empty) (*queue.Snapshot, error)
	Resume(context.Context, *emptypb.Empty) (*queue.Snapshot, error)
	Stop(context.Context, *emptypb.Empty) (*queue.Snapshot, error)
	Status(context.Context, *emptypb.Empty) (*queue.Snapshot, error)
	LoadMore(context.Context, *emptypb.Empty) (*DiscoverReply, error)
	AutoDiscover(context.Context, *AutoDiscoverRequest) (*queue.Snapshot, error)
	Watch(*WatchRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type watchServer struct{ grpc.ServerStream }

func (s *watchServer) Send(e *Event) error { return s.ServerStream.SendMsg(e) }

// RegisterControllerServer registers srv on s.
func RegisterControllerServer(s grpc.ServiceRegistrar, srv ControllerServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the method descriptor of a unary RPC.
func unary[Req, Resp any](name string, call func(ControllerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControllerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ControllerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Discover", ControllerServer.Discover),
		unary("Start", ControllerServer.Start),
		unary("Pause", ControllerServer.Pause),
		unary("Resume", ControllerServer.Resume),
		unary("Stop", ControllerServer.Stop),
		unary("Status", ControllerServer.Status),
		unary("LoadMore", ControllerServer.LoadMore),
		unary("AutoDiscover", ControllerServer.AutoDiscover),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Watch",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ControllerServer).Watch(in, &watchServer{stream})
			},
			ServerStreams: true,
		},
	},
	Metadata: "apply/v1/controller",
}
