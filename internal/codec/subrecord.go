package codec

import (
	"encoding/binary"
	"fmt"
)

// SubRecordHeaderLen es el tamaño de tipo (u16) + longitud (u16).
const SubRecordHeaderLen = 4

// SubRecordFunc decodifica el cuerpo de un sub-registro. body está acotado a
// la longitud declarada; leer más allá es ErrMalformed.
type SubRecordFunc func(body *Reader) error

// SubRecordRules despacha por tipo. Los tipos ausentes se saltan.
type SubRecordRules map[uint16]SubRecordFunc

// ParseSubRecords recorre payload como una secuencia tipo/longitud/cuerpo
// big-endian donde la longitud incluye la cabecera. Una longitud que no cabe
// en el payload aborta el frame completo.
func ParseSubRecords(payload []byte, rules SubRecordRules) error {
	off := 0
	for len(payload)-off >= SubRecordHeaderLen {
		typ := binary.BigEndian.Uint16(payload[off:])
		length := int(binary.BigEndian.Uint16(payload[off+2:]))
		if length < SubRecordHeaderLen {
			return fmt.Errorf("%w: sub-record 0x%04x length %d below header size", ErrMalformed, typ, length)
		}
		if off+length > len(payload) {
			return fmt.Errorf("%w: sub-record 0x%04x length %d overruns payload at offset %d (len=%d)",
				ErrMalformed, typ, length, off, len(payload))
		}
		body := payload[off+SubRecordHeaderLen : off+length]
		off += length

		rule, ok := rules[typ]
		if !ok {
			continue
		}
		r := NewReader(body)
		if err := rule(r); err != nil {
			return fmt.Errorf("sub-record 0x%04x: %w", typ, err)
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("sub-record 0x%04x: %w", typ, err)
		}
	}
	return nil
}
