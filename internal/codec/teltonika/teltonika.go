// Package teltonika decodifica los frames TCP de Teltonika (FMxxx): handshake
// con IMEI y paquetes AVL codec 8 / 8E / 12 con CRC-16/IBM.
package teltonika

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gpscodec-svr/internal/codec"
)

const Protocol = "teltonika"

const (
	Codec8  = 0x08
	Codec8E = 0x8E
	Codec12 = 0x0C

	maxIMEILen = 17
)

var preamble = []byte{0, 0, 0, 0}

// Framer distingue el handshake (largo u16 + IMEI ASCII) de los paquetes de
// datos: 00000000 | dataSize(4B) | data | crc(4B).
type Framer struct{}

func (Framer) Split(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}
	if buf[0] != 0 || buf[1] != 0 {
		n := int(binary.BigEndian.Uint16(buf[0:2]))
		if n == 0 || n > maxIMEILen {
			return nil, 1, fmt.Errorf("%w: bad identifier length %d", codec.ErrFraming, n)
		}
		if len(buf) < 2+n {
			return nil, 0, nil
		}
		return append([]byte(nil), buf[:2+n]...), 2 + n, nil
	}

	if len(buf) < 8 {
		return nil, 0, nil
	}
	if !bytes.Equal(buf[0:4], preamble) {
		return nil, 1, fmt.Errorf("%w: invalid preamble (expected 0x00000000)", codec.ErrFraming)
	}
	dataLen := int(binary.BigEndian.Uint32(buf[4:8]))
	if dataLen == 0 || dataLen > codec.MaxFrameSize {
		return nil, 1, fmt.Errorf("%w: data field length %d", codec.ErrFraming, dataLen)
	}
	total := 8 + dataLen + 4
	if len(buf) < total {
		return nil, 0, nil
	}
	data := buf[8 : 8+dataLen]
	got := binary.BigEndian.Uint32(buf[8+dataLen : total])
	if want := uint32(codec.CRC16ARC(data)); want != got {
		return nil, total, fmt.Errorf("%w: crc16 0x%04x, expected 0x%04x", codec.ErrChecksum, got, want)
	}
	return append([]byte(nil), buf[:total]...), total, nil
}

// EncodePacket envuelve un campo de datos con preámbulo, tamaño y CRC.
func EncodePacket(data []byte) []byte {
	out := make([]byte, 8, 8+len(data)+4)
	binary.BigEndian.PutUint32(out[4:8], uint32(len(data)))
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, uint32(codec.CRC16ARC(data)))
}

// EncodeHandshake arma el primer mensaje que envía el equipo.
func EncodeHandshake(imei string) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(len(imei)))
	return append(out, imei...)
}

// EncodeAck confirma la cantidad de registros AVL aceptados.
func EncodeAck(records int) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(records))
}

type Decoder struct {
	Framer
	// Query se envía una vez por sesión tras el handshake; vacío lo desactiva.
	Query string
}

func New() *Decoder { return &Decoder{Query: CommandGetVer} }

func (d *Decoder) Protocol() string { return Protocol }

func (d *Decoder) Decode(c *codec.Conn, frame []byte) ([]*codec.Record, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: frame too short", codec.ErrMalformed)
	}
	if frame[0] != 0 || frame[1] != 0 {
		s, err := c.Bind(string(frame[2:]))
		if err != nil {
			return nil, err
		}
		c.Reply([]byte{0x01})
		if d.Query != "" && c.CanReply() && s.MarkQueried() {
			c.Reply(EncodeCommand(d.Query))
		}
		return nil, nil
	}

	// preámbulo + tamaño + codec + CRC
	if len(frame) < 13 {
		return nil, fmt.Errorf("%w: frame too short", codec.ErrMalformed)
	}
	s := c.Session()
	if s == nil {
		return nil, codec.ErrUnbound
	}
	data := frame[8 : len(frame)-4]

	switch data[0] {
	case Codec8, Codec8E:
		records, err := decodeAVL(s, data)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			s.SetFix(rec.Fix())
		}
		c.Reply(EncodeAck(len(records)))
		return records, nil
	case Codec12:
		rec, err := decodeCommandResponse(s, data)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, nil
		}
		return []*codec.Record{rec}, nil
	}
	return nil, fmt.Errorf("%w: codec 0x%02x not supported", codec.ErrMalformed, data[0])
}
