package huasheng

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gpscodec-svr/internal/codec"
)

const (
	marker    = 0xC0
	escape    = 0xDB
	escMarker = 0xDC
	escEscape = 0xDD

	// marcador(1) flag(1) reservado(1) longitud(2) tipo(2) checksum(2) índice(4)
	headerLen = 13
	minFrame  = headerLen + 1
)

// Framer delimita frames 0xC0 ... 0xC0 y deshace el escape 0xDB del cuerpo.
// El frame devuelto conserva ambos marcadores.
type Framer struct{}

func (Framer) Split(buf []byte) ([]byte, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	start := bytes.IndexByte(buf, marker)
	if start < 0 {
		return nil, len(buf), fmt.Errorf("%w: %d bytes without start marker", codec.ErrFraming, len(buf))
	}
	if start > 0 {
		return nil, start, fmt.Errorf("%w: %d bytes before start marker", codec.ErrFraming, start)
	}
	end := bytes.IndexByte(buf[1:], marker)
	if end < 0 {
		if len(buf) > codec.MaxFrameSize {
			return nil, len(buf), fmt.Errorf("%w: frame exceeds %d bytes", codec.ErrFraming, codec.MaxFrameSize)
		}
		return nil, 0, nil
	}
	end++ // índice en buf

	if end == 1 {
		// dos marcadores seguidos: el primero es un fin perdido
		return nil, 1, fmt.Errorf("%w: empty frame", codec.ErrFraming)
	}

	frame := make([]byte, 0, end+1)
	frame = append(frame, marker)
	for i := 1; i < end; i++ {
		b := buf[i]
		if b == escape && i+1 < end {
			switch buf[i+1] {
			case escMarker:
				b = marker
				i++
			case escEscape:
				b = escape
				i++
			}
		}
		frame = append(frame, b)
	}
	frame = append(frame, marker)

	if len(frame) < minFrame {
		return nil, end + 1, fmt.Errorf("%w: frame of %d bytes shorter than header", codec.ErrFraming, len(frame))
	}
	return frame, end + 1, nil
}

// Header es la cabecera fija de un frame.
type Header struct {
	Flag     uint8
	Length   uint16
	Type     uint16
	Checksum uint16
	Index    uint32
}

// parseHeader lee la cabecera y devuelve el payload acotado por la longitud
// declarada (que cuenta desde el flag hasta el final del payload).
func parseHeader(frame []byte) (Header, []byte, error) {
	r := codec.NewReader(frame)
	r.Skip(1)
	var h Header
	h.Flag = r.Uint8()
	r.Skip(1) // reservado
	h.Length = r.Uint16()
	h.Type = r.Uint16()
	h.Checksum = r.Uint16()
	h.Index = r.Uint32()
	if err := r.Err(); err != nil {
		return h, nil, err
	}
	end := 1 + int(h.Length)
	limit := len(frame)
	if frame[limit-1] == marker {
		limit--
	}
	if end < headerLen || end > limit {
		return h, nil, fmt.Errorf("%w: declared length %d does not fit frame of %d bytes", codec.ErrMalformed, h.Length, len(frame))
	}
	return h, frame[headerLen:end], nil
}

// EncodeFrame arma un frame con la convención del dialecto: marcador, flag,
// reservado, longitud (12 + contenido), tipo, checksum en cero, índice,
// contenido y marcador. Es el mismo formato que usan las respuestas.
func EncodeFrame(flag uint8, typ uint16, index uint32, content []byte) []byte {
	out := make([]byte, headerLen, headerLen+len(content)+1)
	out[0] = marker
	out[1] = flag
	out[2] = 0
	binary.BigEndian.PutUint16(out[3:], uint16(12+len(content)))
	binary.BigEndian.PutUint16(out[5:], typ)
	binary.BigEndian.PutUint16(out[7:], 0)
	binary.BigEndian.PutUint32(out[9:], index)
	out = append(out, content...)
	return append(out, marker)
}

// EncodeResponse construye un ACK: flag 0x01, tipo de respuesta e índice de
// la petición original.
func EncodeResponse(typ uint16, index uint32, content []byte) []byte {
	return EncodeFrame(0x01, typ, index, content)
}

// EncodeSubRecord arma un sub-registro tipo/longitud/cuerpo.
func EncodeSubRecord(typ uint16, body []byte) []byte {
	out := make([]byte, codec.SubRecordHeaderLen, codec.SubRecordHeaderLen+len(body))
	binary.BigEndian.PutUint16(out[0:], typ)
	binary.BigEndian.PutUint16(out[2:], uint16(codec.SubRecordHeaderLen+len(body)))
	return append(out, body...)
}

// Escape aplica el escape de transporte al interior de un frame armado con
// EncodeFrame.
func Escape(frame []byte) []byte {
	if len(frame) < 2 {
		return frame
	}
	out := make([]byte, 0, len(frame)+4)
	out = append(out, frame[0])
	for _, b := range frame[1 : len(frame)-1] {
		switch b {
		case marker:
			out = append(out, escape, escMarker)
		case escape:
			out = append(out, escape, escEscape)
		default:
			out = append(out, b)
		}
	}
	return append(out, frame[len(frame)-1])
}
