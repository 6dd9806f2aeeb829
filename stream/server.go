package stream

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nathants/ddbstream/lib"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	DefaultAddr     = "0.0.0.0:50051"
	ServiceName     = "ddbstream.DdbStream"
	SubscribeMethod = "/" + ServiceName + "/Subscribe"
	ShutdownTimeout = 5 * time.Second
)

type DdbStreamServer interface {
	Subscribe(req *dynamicpb.Message, stream grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DdbStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "ddbstream.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := newSubscribeRequest()
	err := stream.RecvMsg(req)
	if err != nil {
		return err
	}
	return srv.(DdbStreamServer).Subscribe(req, stream)
}

// Server attaches each subscribe stream to the hub. Streams end when the
// client goes away or ctx is done.
type Server struct {
	ctx context.Context
	hub *Hub
}

func NewServer(ctx context.Context, hub *Hub) *Server {
	return &Server{ctx: ctx, hub: hub}
}

func (s *Server) Subscribe(_ *dynamicpb.Message, stream grpc.ServerStream) error {
	sub := s.hub.Subscribe()
	defer sub.Close()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-stream.Context().Done():
			return nil
		case msg := <-sub.Messages():
			err := stream.SendMsg(msg.toProto())
			if err != nil {
				return err
			}
		}
	}
}

// Register adds the subscribe service and the standard grpc health service
// to srv.
func (s *Server) Register(srv *grpc.Server) *health.Server {
	srv.RegisterService(&ServiceDesc, s)
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)
	return healthSrv
}

// Listen opens addr for Serve, defaulting to DefaultAddr.
func Listen(addr string) (net.Listener, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		lib.Logger.Println("error:", err)
		return nil, err
	}
	return ln, nil
}

// Serve runs the grpc server, the pinger, and the poller until ctx is done
// or any of them fails. Open subscribe streams end with it.
func Serve(ctx context.Context, ln net.Listener, hub *Hub, poller *Poller) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := grpc.NewServer()
	healthSrv := NewServer(ctx, hub).Register(srv)
	lib.Logger.Println("ddbstream server listening on", ln.Addr().String())
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		healthSrv.Shutdown()
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(ShutdownTimeout):
			srv.Stop()
		}
		return nil
	})
	g.Go(func() error {
		return Ping(ctx, hub, PingInterval)
	})
	g.Go(func() error {
		return poller.Run(ctx)
	})
	return g.Wait()
}
