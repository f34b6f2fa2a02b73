// Package robotrack decodifica el protocolo RoboTrack: frames de tamaño fijo
// según el primer byte, little-endian, con CRC-8/ROHC en el último byte.
package robotrack

import (
	"encoding/binary"
	"fmt"
	"time"

	"gpscodec-svr/internal/codec"
)

const Protocol = "robotrack"

const (
	MsgID         = 0x00
	MsgAck        = 0x80
	MsgGPS        = 0x03
	MsgGSM        = 0x04
	MsgImageStart = 0x06
	MsgImageData  = 0x07
	MsgImageEnd   = 0x08
)

const (
	nameLen = 16
	imeiLen = 15
)

// Framer usa el tipo del primer byte para conocer el tamaño del frame.
type Framer struct{}

// frameLength devuelve el tamaño total o 0 si aún no se puede saber.
func frameLength(buf []byte) (int, error) {
	switch buf[0] {
	case MsgID:
		return 39, nil
	case MsgAck:
		return 3, nil
	case MsgGPS, MsgGSM, MsgImageStart:
		return 24, nil
	case MsgImageData:
		if len(buf) < 3 {
			return 0, nil
		}
		return 8 + int(binary.LittleEndian.Uint16(buf[1:3])), nil
	case MsgImageEnd:
		return 6, nil
	}
	return 0, fmt.Errorf("%w: unknown message type 0x%02x", codec.ErrFraming, buf[0])
}

func (Framer) Split(buf []byte) ([]byte, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	length, err := frameLength(buf)
	if err != nil {
		return nil, 1, err
	}
	if length == 0 || len(buf) < length {
		return nil, 0, nil
	}
	frame := buf[:length]
	if want, got := codec.CRC8ROHC(frame[:length-1]), frame[length-1]; want != got {
		return nil, length, fmt.Errorf("%w: crc8 0x%02x, expected 0x%02x", codec.ErrChecksum, got, want)
	}
	return append([]byte(nil), frame...), length, nil
}

// EncodeAck construye la respuesta al frame de identificación.
func EncodeAck(success bool) []byte {
	out := []byte{MsgAck, 0x00}
	if success {
		out[1] = 0x01
	}
	return append(out, codec.CRC8ROHC(out))
}

// Seal agrega el CRC-8/ROHC a un cuerpo de frame.
func Seal(body []byte) []byte {
	out := append([]byte(nil), body...)
	return append(out, codec.CRC8ROHC(body))
}

type Decoder struct {
	Framer
}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Protocol() string { return Protocol }

func (d *Decoder) Decode(c *codec.Conn, frame []byte) ([]*codec.Record, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("%w: frame too short", codec.ErrMalformed)
	}
	// sin el CRC final
	r := codec.NewReaderLE(frame[:len(frame)-1])
	typ := r.Uint8()

	switch typ {
	case MsgID:
		r.Skip(nameLen)
		imei := r.ASCII(imeiLen)
		if err := r.Err(); err != nil {
			return nil, err
		}
		if _, err := c.Bind(imei); err != nil {
			return nil, err
		}
		c.Reply(EncodeAck(true))
		return nil, nil

	case MsgGPS, MsgGSM:
		rec, err := d.decodeReport(c, typ, r)
		if err != nil {
			return nil, err
		}
		return []*codec.Record{rec}, nil
	}
	// ACK del equipo e imágenes: se delimitan pero no generan registro
	return nil, nil
}

func (d *Decoder) decodeReport(c *codec.Conn, typ uint8, r *codec.Reader) (*codec.Record, error) {
	s := c.Session()
	if s == nil {
		return nil, codec.ErrUnbound
	}
	rec := codec.NewRecord(Protocol, s)

	deviceTime := time.Unix(int64(r.Uint32()), 0).UTC()

	if typ == MsgGPS {
		rec.SetTime(deviceTime)
		rec.Valid = true
		rec.Latitude = float64(r.Int32()) * 0.000001
		rec.Longitude = float64(r.Int32()) * 0.000001
		rec.Speed = codec.KnotsFromKph(float64(r.Int8()))
	} else {
		cell := codec.CellTower{
			MCC:    int(r.Uint16()),
			MNC:    int(r.Uint16()),
			LAC:    int(r.Uint16()),
			CellID: int(r.Uint16()),
		}
		r.Skip(1) // reservado
		if err := r.Err(); err != nil {
			return nil, err
		}
		rec.UseLastFix(s, deviceTime)
		rec.Network = &codec.Network{CellTowers: []codec.CellTower{cell}}
	}

	value := uint64(r.Uint8())
	rec.Attributes.SetInt(codec.KeySatellites, int64(codec.To(value, 4)))
	rec.Attributes.SetInt(codec.KeyRSSI, int64(codec.Between(value, 4, 7)))
	rec.Attributes.SetBool(codec.KeyMotion, codec.Check(value, 7))

	value = uint64(r.Uint8())
	rec.Attributes.SetBool(codec.KeyCharge, codec.Check(value, 0))
	for i := 1; i <= 4; i++ {
		rec.Attributes.SetBool(codec.KeyIn(i), codec.Check(value, uint(i)))
	}
	rec.Attributes.SetInt(codec.KeyBatteryLevel, int64(codec.From(value, 5)*100/7))
	rec.Attributes.SetInt(codec.KeyDeviceTemp, int64(r.Int8()))

	for i := 1; i <= 3; i++ {
		rec.Attributes.SetInt(codec.KeyADC(i), int64(r.Uint16()))
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !rec.Outdated {
		s.SetFix(rec.Fix())
	}
	return rec, nil
}
