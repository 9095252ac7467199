package grpc_control

import (
	"context"
	"fmt"
	"net"
	"time"

	"price-oracle/src/logger"
	"price-oracle/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// -----------------------------------------------------------------------------
// Server hosts the control service on the configured gRPC address.
// -----------------------------------------------------------------------------

type Server struct {
	Config *models.MConfig
	Logger *logger.Logger
	grpc   *grpc.Server
}

func NewServer(cfg *models.MConfig, log *logger.Logger, control OracleControlServer) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Server{Config: cfg, Logger: log}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logInterceptor))
	RegisterOracleControlServer(s.grpc, control)
	return s
}

// Addr is the listen address, host defaulting to the HTTP host.
func (s *Server) Addr() string {
	host := s.Config.GrpcHost
	if host == "" {
		host = s.Config.Host
	}
	return fmt.Sprintf("%s:%d", host, s.Config.GrpcPort)
}

// -----------------------------------------------------------------------------

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.Logger.Info("Starting gRPC control service on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	s.grpc.GracefulStop()
	return nil
}

// -----------------------------------------------------------------------------

func (s *Server) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.Logger.Debug("gRPC %s code=%s took=%s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}
