package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"gpscodec-svr/internal/pipeline"
)

var ErrNotConnected = errors.New("link: not connected")

// Client mantiene una conexión TCP hacia socket-tcp-proxy y le envía NDJSON.
// Reconecta solo mientras Run esté activo.
type Client struct {
	addr   string
	logger *slog.Logger

	DialTimeout    time.Duration
	RetryInterval  time.Duration
	ReconnectDelay time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewClient(addr string, lg *slog.Logger) *Client {
	return &Client{
		addr:           addr,
		logger:         lg.With("component", "link"),
		DialTimeout:    5 * time.Second,
		RetryInterval:  5 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

func (c *Client) Name() string { return "link" }

// Run conecta y reconecta hasta que ctx se cancela.
func (c *Client) Run(ctx context.Context) {
	d := net.Dialer{Timeout: c.DialTimeout}
	for ctx.Err() == nil {
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.logger.Error("link: dial failed", "addr", c.addr, "err", err)
			sleep(ctx, c.RetryInterval)
			continue
		}

		c.setConn(conn)
		c.logger.Info("link: connected", "remote", conn.RemoteAddr().String())

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		// leer en este hilo hasta que se caiga
		c.readLoop(conn)
		stop()

		c.clearConn(conn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("link: connection closed, reconnecting...")
		sleep(ctx, c.ReconnectDelay)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Connected indica si hay conexión activa con el proxy.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	for r.Scan() {
		// Por ahora el proxy no manda comandos; sólo se loguea.
		c.logger.Info("link: incoming line", "line", r.Text())
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("link: read error", "err", err)
	}
}

func (c *Client) sendNDJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	// un proxy que no lee no puede frenar a las conexiones de los equipos
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.DialTimeout))
	if _, err = c.conn.Write(b); err != nil {
		// Run detecta el cierre en readLoop y reconecta
		_ = c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

type devicePayload struct {
	DeviceConnect    bool   `json:"device_connect,omitempty"`
	DeviceDisconnect bool   `json:"device_disconnect,omitempty"`
	IMEI             string `json:"imei"`
	Protocol         string `json:"protocol,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	RemoteIP         string `json:"remote_ip,omitempty"`
	RemotePort       int    `json:"remote_port,omitempty"`
}

// SendDevice notifica el enlace o la liberación de una sesión.
func (c *Client) SendDevice(info DeviceInfo) error {
	pl := devicePayload{
		DeviceConnect:    info.State == DeviceStateConnect,
		DeviceDisconnect: info.State == DeviceStateDisconnect,
		IMEI:             info.IMEI,
		Protocol:         info.Protocol,
		SessionID:        info.SessionID,
		RemoteIP:         info.RemoteIP,
		RemotePort:       info.RemotePort,
	}
	if err := c.sendNDJSON(pl); err != nil {
		c.logger.Warn("link: send device event failed", "imei", info.IMEI, "state", info.State.String(), "err", err)
		return err
	}
	return nil
}

// Forward envía el trackeo como una línea NDJSON.
func (c *Client) Forward(_ context.Context, tr *pipeline.TrackingObject) error {
	if tr == nil {
		return nil
	}
	return c.sendNDJSON(tr)
}
