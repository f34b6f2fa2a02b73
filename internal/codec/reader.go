package codec

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Reader es un cursor acotado sobre un frame. Cada lectura avanza el offset;
// una lectura que excede el buffer no hace panic: deja el error pegado y las
// siguientes lecturas devuelven cero. Se revisa con Err() al final de un bloque.
type Reader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
	err   error
}

// NewReader crea un lector big-endian.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b, order: binary.BigEndian}
}

// NewReaderLE crea un lector little-endian.
func NewReaderLE(b []byte) *Reader {
	return &Reader{buf: b, order: binary.LittleEndian}
}

func (r *Reader) Err() error { return r.err }

// Len devuelve los bytes pendientes de leer.
func (r *Reader) Len() int {
	if r.err != nil {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *Reader) Offset() int { return r.off }

// Next devuelve los siguientes n bytes sin copiarlos.
func (r *Reader) Next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: tried to read %d bytes at offset %d (len=%d)", ErrMalformed, n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Skip(n int) {
	r.Next(n)
}

// Sub devuelve un lector nuevo limitado a los siguientes n bytes, con el mismo
// orden de bytes. Un overrun en el sub-lector no afecta a éste.
func (r *Reader) Sub(n int) *Reader {
	b := r.Next(n)
	sub := &Reader{buf: b, order: r.order}
	if r.err != nil {
		sub.err = r.err
	}
	return sub
}

func (r *Reader) Uint8() uint8 {
	b := r.Next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Int8() int8 {
	return int8(r.Uint8())
}

func (r *Reader) Uint16() uint16 {
	b := r.Next(2)
	if b == nil {
		return 0
	}
	return r.order.Uint16(b)
}

func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

func (r *Reader) Uint32() uint32 {
	b := r.Next(4)
	if b == nil {
		return 0
	}
	return r.order.Uint32(b)
}

func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

func (r *Reader) Uint64() uint64 {
	b := r.Next(8)
	if b == nil {
		return 0
	}
	return r.order.Uint64(b)
}

// ASCII lee n bytes como texto. Los NUL y espacios de relleno se recortan.
func (r *Reader) ASCII(n int) string {
	b := r.Next(n)
	if b == nil {
		return ""
	}
	return strings.TrimRight(string(b), "\x00 ")
}

// Rest consume y devuelve todo lo que queda.
func (r *Reader) Rest() []byte {
	return r.Next(r.Len())
}
