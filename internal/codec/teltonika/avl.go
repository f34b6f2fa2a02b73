package teltonika

import (
	"encoding/binary"
	"fmt"
	"time"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/session"
)

// ioElement es un IO crudo: id y bytes del valor.
type ioElement struct {
	ID    uint16
	Value []byte
}

// decodeAVL recorre el campo de datos: codec | n1 | registros | n2.
func decodeAVL(s *session.Session, data []byte) ([]*codec.Record, error) {
	r := codec.NewReader(data)
	codecID := r.Uint8()
	count := int(r.Uint8())
	if err := r.Err(); err != nil {
		return nil, err
	}

	records := make([]*codec.Record, 0, count)
	for i := 0; i < count; i++ {
		rec, err := decodeRecord(s, codecID, r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	if check := int(r.Uint8()); r.Err() == nil && check != count {
		return nil, fmt.Errorf("%w: number of data %d != %d", codec.ErrMalformed, count, check)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeRecord(s *session.Session, codecID uint8, r *codec.Reader) (*codec.Record, error) {
	rec := codec.NewRecord(Protocol, s)

	ts := r.Uint64()
	priority := r.Uint8()
	lon := r.Int32()
	lat := r.Int32()
	altitude := r.Int16()
	angle := r.Uint16()
	satellites := r.Uint8()
	speed := r.Uint16()
	if err := r.Err(); err != nil {
		return nil, err
	}

	rec.SetTime(time.UnixMilli(int64(ts)).UTC())
	rec.Longitude = float64(lon) / 10000000
	rec.Latitude = float64(lat) / 10000000
	rec.Altitude = float64(altitude)
	rec.Course = float64(angle)
	rec.Speed = codec.KnotsFromKph(float64(speed))
	rec.Valid = satellites != 0
	rec.Attributes.SetInt(codec.KeyPriority, int64(priority))
	rec.Attributes.SetInt(codec.KeySatellites, int64(satellites))

	var (
		event    uint16
		elements []ioElement
		err      error
	)
	if codecID == Codec8E {
		event, elements, err = readElements8E(r)
	} else {
		event, elements, err = readElements8(r)
	}
	if err != nil {
		return nil, err
	}
	rec.Attributes.SetInt(codec.KeyEvent, int64(event))
	for _, e := range elements {
		applyIO(rec, e)
	}
	return rec, nil
}

// readElements8: evento(1B) total(1B) y grupos de 1,2,4,8 bytes con id de 1B.
func readElements8(r *codec.Reader) (uint16, []ioElement, error) {
	event := uint16(r.Uint8())
	total := int(r.Uint8())
	elements := make([]ioElement, 0, total)
	for size := 1; size <= 8; size *= 2 {
		n := int(r.Uint8())
		for j := 0; j < n; j++ {
			id := uint16(r.Uint8())
			elements = append(elements, ioElement{ID: id, Value: r.Next(size)})
		}
	}
	if err := r.Err(); err != nil {
		return 0, nil, err
	}
	if len(elements) > total {
		return 0, nil, fmt.Errorf("%w: %d io elements, header says %d", codec.ErrMalformed, len(elements), total)
	}
	return event, elements, nil
}

// readElements8E: como codec 8 pero con ids y contadores de 2B y un grupo
// final de largo variable (id + largo + valor).
func readElements8E(r *codec.Reader) (uint16, []ioElement, error) {
	event := r.Uint16()
	total := int(r.Uint16())
	elements := make([]ioElement, 0, total)
	for size := 1; size <= 8; size *= 2 {
		n := int(r.Uint16())
		for j := 0; j < n; j++ {
			id := r.Uint16()
			elements = append(elements, ioElement{ID: id, Value: r.Next(size)})
		}
	}
	nx := int(r.Uint16())
	for j := 0; j < nx; j++ {
		id := r.Uint16()
		size := int(r.Uint16())
		elements = append(elements, ioElement{ID: id, Value: r.Next(size)})
	}
	if err := r.Err(); err != nil {
		return 0, nil, err
	}
	if len(elements) > total {
		return 0, nil, fmt.Errorf("%w: %d io elements, header says %d", codec.ErrMalformed, len(elements), total)
	}
	return event, elements, nil
}

// ioUint interpreta el valor como entero sin signo big-endian.
func ioUint(v []byte) (uint64, bool) {
	switch len(v) {
	case 1:
		return uint64(v[0]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(v)), true
	case 4:
		return uint64(binary.BigEndian.Uint32(v)), true
	case 8:
		return binary.BigEndian.Uint64(v), true
	}
	return 0, false
}
