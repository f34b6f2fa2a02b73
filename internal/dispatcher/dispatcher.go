// Package dispatcher conecta el transporte con los decodificadores: acumula
// bytes por conexión, separa frames, decodifica y reenvía los registros.
package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/link"
	"gpscodec-svr/internal/observability"
	"gpscodec-svr/internal/pipeline"
	"gpscodec-svr/internal/session"
)

// ErrBufferOverflow: la conexión acumuló más bytes de los que un frame puede
// ocupar sin que el framer avance.
var ErrBufferOverflow = errors.New("dispatcher: receive buffer overflow")

const maxPending = 2 * codec.MaxFrameSize

// Sink recibe cada registro decodificado.
type Sink interface {
	Name() string
	Forward(ctx context.Context, tr *pipeline.TrackingObject) error
}

// DeviceNotifier recibe el enlace y la liberación de sesiones.
type DeviceNotifier interface {
	SendDevice(info link.DeviceInfo) error
}

type Options struct {
	Registry *session.Registry
	Sinks    []Sink
	Notifier DeviceNotifier
	Logger   *slog.Logger

	// RawLogDir vacío deshabilita el volcado hex de frames.
	RawLogDir   string
	IdleTimeout time.Duration
	Now         func() time.Time
}

type Dispatcher struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Registry == nil {
		opts.Registry = session.NewRegistry(session.Options{Logger: opts.Logger})
	}
	return &Dispatcher{opts: opts, logger: opts.Logger.With("component", "dispatcher")}
}

func (d *Dispatcher) Registry() *session.Registry { return d.opts.Registry }

// Serve atiende una conexión hasta EOF, error de escritura o cancelación.
func (d *Dispatcher) Serve(ctx context.Context, nc net.Conn, dec codec.Decoder) {
	defer nc.Close()

	proto := dec.Protocol()
	observability.TCPConnections.WithLabelValues(proto).Inc()
	lg := d.logger.With("protocol", proto, "remote", nc.RemoteAddr().String())
	lg.Info("connection accepted")

	c := codec.NewConn(ctx, d.opts.Registry, nc.RemoteAddr(), &ackWriter{w: nc, protocol: proto}, lg)
	st := d.NewStream(c, dec)
	defer st.Close()

	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	defer stop()

	buf := make([]byte, 2048)
	for {
		if d.opts.IdleTimeout > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(d.opts.IdleTimeout))
		}
		n, err := nc.Read(buf)
		if n > 0 {
			if ferr := st.Feed(buf[:n]); ferr != nil {
				lg.Warn("closing connection", "err", ferr)
				return
			}
		}
		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				lg.Info("connection closed")
			case errors.As(err, &ne) && ne.Timeout():
				lg.Info("connection idle, closing")
			default:
				lg.Error("read error", "err", err)
			}
			return
		}
	}
}

// ackWriter cuenta cada respuesta escrita al equipo.
type ackWriter struct {
	w        io.Writer
	protocol string
}

func (a *ackWriter) Write(p []byte) (int, error) {
	n, err := a.w.Write(p)
	if err == nil {
		observability.AcksSent.WithLabelValues(a.protocol).Inc()
	}
	return n, err
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, codec.ErrChecksum):
		return "checksum"
	case errors.Is(err, codec.ErrFraming):
		return "framing"
	case errors.Is(err, codec.ErrUnbound):
		return "unbound"
	case errors.Is(err, codec.ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(err, session.ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, codec.ErrMalformed):
		return "malformed"
	}
	return "other"
}
