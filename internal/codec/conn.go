package codec

import (
	"context"
	"io"
	"log/slog"
	"net"

	"gpscodec-svr/internal/session"
)

// SessionRegistry es lo que el núcleo necesita del registro de dispositivos.
type SessionRegistry interface {
	ResolveOrCreate(ctx context.Context, imei string) (*session.Session, error)
	Release(s *session.Session)
}

// Conn es el contexto de una conexión de transporte: la sesión enlazada y el
// camino de respuesta hacia el equipo. No es seguro para uso concurrente; el
// transporte decodifica una conexión desde una sola goroutine.
type Conn struct {
	ctx      context.Context
	registry SessionRegistry
	remote   net.Addr
	out      io.Writer
	logger   *slog.Logger

	session  *session.Session
	writeErr error
}

// NewConn crea el contexto. out puede ser nil cuando no hay camino de
// respuesta (p.ej. replay de capturas); en ese caso Reply no hace nada.
func NewConn(ctx context.Context, registry SessionRegistry, remote net.Addr, out io.Writer, logger *slog.Logger) *Conn {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Conn{ctx: ctx, registry: registry, remote: remote, out: out, logger: logger}
}

func (c *Conn) Context() context.Context { return c.ctx }
func (c *Conn) RemoteAddr() net.Addr     { return c.remote }
func (c *Conn) Logger() *slog.Logger     { return c.logger }

// Bind resuelve (o crea) la sesión del IMEI y la enlaza a la conexión. Si la
// conexión ya tenía otra sesión, la libera.
func (c *Conn) Bind(imei string) (*session.Session, error) {
	s, err := c.registry.ResolveOrCreate(c.ctx, imei)
	if err != nil {
		return nil, err
	}
	if c.session != nil {
		if c.session == s {
			// ya estaba enlazada; ResolveOrCreate sumó una referencia de más
			c.registry.Release(s)
			return s, nil
		}
		c.registry.Release(c.session)
	}
	c.session = s
	return s, nil
}

// Session devuelve la sesión enlazada o nil.
func (c *Conn) Session() *session.Session {
	return c.session
}

// Reply escribe un ACK. Sin camino de respuesta es un no-op. Un error de
// escritura queda registrado en WriteErr para que el transporte decida.
func (c *Conn) Reply(frame []byte) {
	if c.out == nil || len(frame) == 0 || c.writeErr != nil {
		return
	}
	if _, err := c.out.Write(frame); err != nil {
		c.writeErr = err
	}
}

func (c *Conn) CanReply() bool { return c.out != nil }

func (c *Conn) WriteErr() error { return c.writeErr }

// Close libera la sesión enlazada.
func (c *Conn) Close() {
	if c.session != nil {
		c.registry.Release(c.session)
		c.session = nil
	}
}
