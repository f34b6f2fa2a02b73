package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/dynamicpb"

	"gpscodec-svr/internal/pipeline"
)

var ErrRejected = errors.New("grpcclient: forwarder rejected data")

type GRPCClient struct {
	conn    *grpc.ClientConn
	logger  *slog.Logger
	Timeout time.Duration
}

// NewGRPCClient no conecta todavía; la conexión se establece en la primera
// llamada.
func NewGRPCClient(addr string, lg *slog.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: %w", err)
	}
	return &GRPCClient{
		conn:    conn,
		logger:  lg.With("component", "grpcclient"),
		Timeout: 5 * time.Second,
	}, nil
}

func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

func (g *GRPCClient) Name() string { return "grpc" }

func (g *GRPCClient) SendData(ctx context.Context, deviceID, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	res := dynamicpb.NewMessage(DataResponse)
	if err := g.conn.Invoke(ctx, SendDataMethod, NewDataRequest(deviceID, payload), res); err != nil {
		return err
	}
	if !boolField(res, "success") {
		g.logger.Warn("Forwarder: failed to send data", "imei", deviceID)
		return ErrRejected
	}
	return nil
}

// Forward envía el trackeo serializado en JSON como payload.
func (g *GRPCClient) Forward(ctx context.Context, tr *pipeline.TrackingObject) error {
	b, err := pipeline.ToJSON(tr)
	if err != nil {
		return err
	}
	return g.SendData(ctx, tr.IMEI, string(b))
}
