package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler atiende una conexión aceptada. Debe volver cuando ctx se cancela.
type Handler func(ctx context.Context, conn net.Conn)

type TcpServer struct {
	Addr    string
	Handler Handler
	Logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// Start escucha en addr y atiende cada conexión en su goroutine hasta que ctx
// se cancela. Espera a que terminen las conexiones activas antes de volver.
func Start(ctx context.Context, addr string, handler Handler, lg *slog.Logger) error {
	srv := &TcpServer{Addr: addr, Handler: handler, Logger: lg}
	return srv.ListenAndServe(ctx)
}

func (srv *TcpServer) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	return srv.Serve(ctx, listener)
}

// ListenAddr devuelve la dirección real del listener (útil con puerto 0).
func (srv *TcpServer) ListenAddr() net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listener == nil {
		return nil
	}
	return srv.listener.Addr()
}

func (srv *TcpServer) Serve(ctx context.Context, listener net.Listener) error {
	srv.mu.Lock()
	srv.listener = listener
	srv.mu.Unlock()

	lg := srv.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg = lg.With("component", "server", "addr", listener.Addr().String())
	lg.Info("TCP Server listening")

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	defer srv.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				lg.Info("TCP Server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			lg.Error("accept error", "err", err)
			return err
		}

		tune(conn)
		srv.wg.Add(1)
		go func(c net.Conn) {
			defer srv.wg.Done()
			srv.HandleConnection(ctx, c)
		}(conn)
	}
}

func (srv *TcpServer) HandleConnection(ctx context.Context, conn net.Conn) {
	if srv.Handler == nil {
		_ = conn.Close()
		return
	}
	srv.Handler(ctx, conn)
}

func tune(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}
}
