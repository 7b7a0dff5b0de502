package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/grpcserver"
)

func startGrpcServer(ctx context.Context, logger *slog.Logger, svc grpcserver.Availability) error {
	port, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	hs := grpcserver.Register(srv, svc)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}
