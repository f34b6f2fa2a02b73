package dispatcher

import (
	"time"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/link"
	"gpscodec-svr/internal/observability"
	"gpscodec-svr/internal/pipeline"
	"gpscodec-svr/internal/session"
	"gpscodec-svr/internal/utilities"
)

// Stream es el estado de decodificación de un flujo de bytes de un equipo:
// una conexión TCP o un flujo reconstruido de una captura. No es seguro para
// uso concurrente.
type Stream struct {
	d     *Dispatcher
	dec   codec.Decoder
	conn  *codec.Conn
	buf   []byte
	bound *session.Session
}

func (d *Dispatcher) NewStream(c *codec.Conn, dec codec.Decoder) *Stream {
	return &Stream{d: d, dec: dec, conn: c}
}

// Feed agrega bytes y procesa todos los frames completos. Los frames
// inválidos se descartan sin error; sólo devuelve error si la conexión ya no
// sirve (escritura fallida o buffer desbordado).
func (s *Stream) Feed(data []byte) error {
	s.buf = append(s.buf, data...)

	off := 0
	for off < len(s.buf) {
		frame, n, err := s.dec.Split(s.buf[off:])
		if err != nil {
			if n <= 0 {
				n = 1
			}
			s.drop(err, s.buf[off:off+n])
			off += n
			continue
		}
		if n == 0 {
			break
		}
		off += n
		s.handleFrame(frame)
		if err := s.conn.WriteErr(); err != nil {
			return err
		}
	}

	// compactar lo pendiente al inicio del buffer
	s.buf = append(s.buf[:0], s.buf[off:]...)
	if len(s.buf) > maxPending {
		return ErrBufferOverflow
	}
	return nil
}

// Pending devuelve cuántos bytes esperan completar un frame.
func (s *Stream) Pending() int { return len(s.buf) }

func (s *Stream) drop(err error, data []byte) {
	proto := s.dec.Protocol()
	observability.FramesDropped.WithLabelValues(proto, dropReason(err)).Inc()
	s.conn.Logger().Warn("frame dropped", "reason", dropReason(err), "len", len(data), "err", err)
	s.rawLog("DROP", data)
}

func (s *Stream) rawLog(kind string, data []byte) {
	if s.d.opts.RawLogDir == "" {
		return
	}
	remote := ""
	if a := s.conn.RemoteAddr(); a != nil {
		remote = a.String()
	}
	line := kind + " " + utilities.FrameLine(remote, data)
	if err := utilities.CreateLog(s.d.opts.RawLogDir, s.dec.Protocol(), line); err != nil {
		s.conn.Logger().Debug("raw log failed", "err", err)
	}
}

func (s *Stream) handleFrame(frame []byte) {
	proto := s.dec.Protocol()
	observability.FramesRecv.WithLabelValues(proto).Inc()
	s.rawLog("RECV", frame)

	start := time.Now()
	records, err := s.dec.Decode(s.conn, frame)
	observability.ObserveParseLatency(proto, start)
	s.checkBinding()
	if err != nil {
		s.drop(err, frame)
		return
	}
	if len(records) == 0 {
		return
	}

	ctx := s.conn.Context()
	now := s.d.opts.Now()
	batch := len(records) > 1
	var latest *codec.Record
	for _, rec := range records {
		observability.RecordsDecoded.WithLabelValues(proto).Inc()
		if !rec.Outdated && (latest == nil || !rec.FixTime.Before(latest.FixTime)) {
			latest = rec
		}
		s.forward(pipeline.FromRecord(rec, batch, now))
	}

	if sess := s.conn.Session(); sess != nil && latest != nil {
		if err := s.d.opts.Registry.RememberFix(ctx, sess, latest.Fix()); err != nil {
			s.conn.Logger().Warn("remember fix failed", "imei", sess.IMEI, "err", err)
		}
	}
}

func (s *Stream) forward(tr *pipeline.TrackingObject) {
	ctx := s.conn.Context()
	for _, sink := range s.d.opts.Sinks {
		if err := sink.Forward(ctx, tr); err != nil {
			observability.ForwardErrors.WithLabelValues(sink.Name()).Inc()
			s.conn.Logger().Warn("forward failed", "sink", sink.Name(), "imei", tr.IMEI, "err", err)
		}
	}
}

// checkBinding detecta enlaces nuevos de sesión tras cada frame.
func (s *Stream) checkBinding() {
	cur := s.conn.Session()
	if cur == s.bound {
		return
	}
	if s.bound != nil {
		s.notify(s.bound, link.DeviceStateDisconnect)
	}
	s.bound = cur
	if cur != nil {
		observability.HandshakeOK.WithLabelValues(s.dec.Protocol()).Inc()
		s.conn.Logger().Info("device bound", "imei", cur.IMEI, "session", cur.ID.String())
		s.notify(cur, link.DeviceStateConnect)
	}
}

func (s *Stream) notify(sess *session.Session, state link.DeviceState) {
	if s.d.opts.Notifier == nil {
		return
	}
	ip, port := link.SplitRemote(s.conn.RemoteAddr())
	_ = s.d.opts.Notifier.SendDevice(link.DeviceInfo{
		IMEI:       sess.IMEI,
		Protocol:   s.dec.Protocol(),
		SessionID:  sess.ID.String(),
		RemoteIP:   ip,
		RemotePort: port,
		State:      state,
	})
}

// Close libera la sesión enlazada y notifica la desconexión.
func (s *Stream) Close() {
	if s.bound != nil {
		s.notify(s.bound, link.DeviceStateDisconnect)
		s.bound = nil
	}
	s.conn.Close()
}
