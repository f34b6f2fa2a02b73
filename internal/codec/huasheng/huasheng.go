// Package huasheng decodifica el protocolo HuaSheng: frames 0xC0 con cabecera
// fija, login por IMEI, heartbeat y posición con sub-registros tipo/longitud.
package huasheng

import (
	"fmt"
	"strconv"
	"strings"

	"gpscodec-svr/internal/codec"
)

const Protocol = "huasheng"

const (
	MsgPosition     = 0xAA00
	MsgPositionRsp  = 0xFF01
	MsgLogin        = 0xAA02
	MsgLoginRsp     = 0xFF03
	MsgHeartbeat    = 0x0002
	MsgHeartbeatRsp = 0x0003
)

// sub-registros
const (
	subIMEI   = 0x0003
	subEngine = 0x0001
	subSignal = 0x0005
	subVIN    = 0x0009
	subHours  = 0x0011
	subCells  = 0x0020
	subWifi   = 0x0021
)

const loginSuccess = 0x00

type Decoder struct {
	Framer
}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Protocol() string { return Protocol }

func (d *Decoder) Decode(c *codec.Conn, frame []byte) ([]*codec.Record, error) {
	h, payload, err := parseHeader(frame)
	if err != nil {
		return nil, err
	}

	switch h.Type {
	case MsgLogin:
		return nil, d.decodeLogin(c, h, payload)
	case MsgHeartbeat:
		c.Reply(EncodeResponse(MsgHeartbeatRsp, h.Index, nil))
		return nil, nil
	case MsgPosition:
		rec, err := d.decodePosition(c, payload)
		if err != nil {
			return nil, err
		}
		c.Reply(EncodeResponse(MsgPositionRsp, h.Index, nil))
		return []*codec.Record{rec}, nil
	}
	c.Logger().Debug("unsupported message type", "protocol", Protocol, "type", fmt.Sprintf("0x%04x", h.Type))
	return nil, nil
}

func (d *Decoder) decodeLogin(c *codec.Conn, h Header, payload []byte) error {
	var imei string
	err := codec.ParseSubRecords(payload, codec.SubRecordRules{
		subIMEI: func(body *codec.Reader) error {
			imei = body.ASCII(body.Len())
			return nil
		},
	})
	if err != nil {
		return err
	}
	if imei == "" {
		return fmt.Errorf("%w: login without identifier", codec.ErrMalformed)
	}
	if _, err := c.Bind(imei); err != nil {
		return err
	}
	c.Reply(EncodeResponse(MsgLoginRsp, h.Index, []byte{loginSuccess}))
	return nil
}

func (d *Decoder) decodePosition(c *codec.Conn, payload []byte) (*codec.Record, error) {
	s := c.Session()
	if s == nil {
		return nil, codec.ErrUnbound
	}
	rec := codec.NewRecord(Protocol, s)

	r := codec.NewReader(payload)
	status := r.Uint16()
	event := r.Uint16()
	digits := r.ASCII(12)
	lon := r.Int32()
	lat := r.Int32()
	speed := r.Uint16()
	course := r.Uint16()
	altitude := r.Uint16()
	odometer := r.Uint16()
	if err := r.Err(); err != nil {
		return nil, err
	}

	t, err := codec.ParseDigitTime(digits)
	if err != nil {
		return nil, err
	}
	rec.SetTime(t)

	rec.Valid = codec.Check(uint64(status), 15)
	rec.Attributes.SetInt(codec.KeyStatus, int64(status))
	rec.Attributes.SetBool(codec.KeyIgnition, codec.Check(uint64(status), 14))
	rec.SetAlarm(DecodeAlarm(event))
	rec.Attributes.SetInt(codec.KeyEvent, int64(event))

	rec.Longitude = float64(lon) * 0.00001
	rec.Latitude = float64(lat) * 0.00001
	rec.Speed = codec.KnotsFromKph(float64(speed))
	rec.Course = float64(course)
	rec.Altitude = float64(altitude)
	rec.Attributes.SetInt(codec.KeyOdometer, int64(odometer)*1000)

	network := &codec.Network{}
	if err := codec.ParseSubRecords(r.Rest(), positionRules(rec, network)); err != nil {
		return nil, err
	}
	rec.AttachNetwork(network)
	s.SetFix(rec.Fix())
	return rec, nil
}

// DecodeAlarm traduce el código de evento; los no mapeados son AlarmNone.
func DecodeAlarm(event uint16) codec.Alarm {
	switch event {
	case 4:
		return codec.AlarmFatigueDriving
	case 6:
		return codec.AlarmSOS
	case 7:
		return codec.AlarmBraking
	case 8:
		return codec.AlarmAcceleration
	case 9:
		return codec.AlarmCornering
	case 10:
		return codec.AlarmAccident
	case 16:
		return codec.AlarmRemoving
	}
	return codec.AlarmNone
}

func positionRules(rec *codec.Record, network *codec.Network) codec.SubRecordRules {
	attrs := &rec.Attributes
	return codec.SubRecordRules{
		subEngine: func(b *codec.Reader) error {
			attrs.SetInt(codec.KeyCoolantTemp, int64(b.Uint8())-40)
			attrs.SetInt(codec.KeyRPM, int64(b.Uint16()))
			attrs.SetExtra("averageSpeed", codec.IntValue(int64(b.Uint8())))
			b.Skip(2) // consumo del intervalo
			attrs.SetFloat(codec.KeyFuelConsumption, float64(b.Uint16())*0.01)
			attrs.SetInt(codec.KeyTripOdometer, int64(b.Uint16()))
			attrs.SetFloat(codec.KeyPower, float64(b.Uint16())*0.01)
			attrs.SetFloat(codec.KeyFuelLevel, float64(b.Uint8())*0.4)
			b.Skip(4) // id de viaje
			return b.Err()
		},
		subSignal: func(b *codec.Reader) error {
			attrs.SetInt(codec.KeyRSSI, int64(b.Uint8()))
			attrs.SetFloat(codec.KeyHDOP, float64(b.Uint8()))
			b.Skip(4) // tiempo de funcionamiento
			return b.Err()
		},
		subVIN: func(b *codec.Reader) error {
			attrs.SetString(codec.KeyVIN, b.ASCII(b.Len()))
			return nil
		},
		subHours: func(b *codec.Reader) error {
			attrs.SetFloat(codec.KeyHours, float64(b.Uint32())*0.05)
			return b.Err()
		},
		subCells: func(b *codec.Reader) error {
			cells, err := ParseCellTowers(string(b.Rest()))
			if err != nil {
				return err
			}
			for _, cell := range cells {
				network.AddCellTower(cell)
			}
			return nil
		},
		subWifi: func(b *codec.Reader) error {
			points, err := ParseWifiAccessPoints(string(b.Rest()))
			if err != nil {
				return err
			}
			for _, p := range points {
				network.AddWifiAccessPoint(p)
			}
			return nil
		},
	}
}

// ParseCellTowers decodifica "mcc@mnc@lacHex@cidHex+..." .
func ParseCellTowers(text string) ([]codec.CellTower, error) {
	var out []codec.CellTower
	for _, entry := range strings.Split(text, "+") {
		if entry == "" {
			continue
		}
		values := strings.Split(entry, "@")
		if len(values) < 4 {
			return nil, fmt.Errorf("%w: cell entry %q", codec.ErrMalformed, entry)
		}
		mcc, err1 := strconv.Atoi(values[0])
		mnc, err2 := strconv.Atoi(values[1])
		lac, err3 := strconv.ParseInt(values[2], 16, 32)
		cid, err4 := strconv.ParseInt(values[3], 16, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("%w: cell entry %q", codec.ErrMalformed, entry)
		}
		out = append(out, codec.CellTower{MCC: mcc, MNC: mnc, LAC: int(lac), CellID: int(cid)})
	}
	return out, nil
}

// ParseWifiAccessPoints decodifica "mac@señal+..." .
func ParseWifiAccessPoints(text string) ([]codec.WifiAccessPoint, error) {
	var out []codec.WifiAccessPoint
	for _, entry := range strings.Split(text, "+") {
		if entry == "" {
			continue
		}
		values := strings.Split(entry, "@")
		if len(values) < 2 {
			return nil, fmt.Errorf("%w: wifi entry %q", codec.ErrMalformed, entry)
		}
		signal, err := strconv.Atoi(values[1])
		if err != nil {
			return nil, fmt.Errorf("%w: wifi entry %q", codec.ErrMalformed, entry)
		}
		out = append(out, codec.WifiAccessPoint{MAC: values[0], Signal: signal})
	}
	return out, nil
}
