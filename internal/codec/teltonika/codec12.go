package teltonika

import (
	"encoding/binary"
	"fmt"
	"time"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/session"
)

const (
	typeCommand  = 0x05
	typeResponse = 0x06
)

// EncodeCommand arma un comando Codec 12 (tipo 0x05) con el texto ASCII cmd
// (p.ej. "getver"), ya envuelto con preámbulo, tamaño y CRC.
// data = 0x0C | 0x01 | 0x05 | cmdLen(4B) | cmd | 0x01
func EncodeCommand(cmd string) []byte {
	return EncodePacket(codec12Data(typeCommand, cmd))
}

func codec12Data(typ byte, text string) []byte {
	data := []byte{Codec12, 0x01, typ}
	data = binary.BigEndian.AppendUint32(data, uint32(len(text)))
	data = append(data, text...)
	return append(data, 0x01)
}

// decodeCommandResponse devuelve un registro con el texto de la respuesta y la
// última posición conocida. Los comandos (0x05) que rebotan se ignoran.
func decodeCommandResponse(s *session.Session, data []byte) (*codec.Record, error) {
	r := codec.NewReader(data)
	r.Skip(1) // codec
	qty := r.Uint8()
	typ := r.Uint8()
	size := int(r.Uint32())
	text := r.Next(size)
	qty2 := r.Uint8()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if qty != qty2 {
		return nil, fmt.Errorf("%w: codec12 quantity %d != %d", codec.ErrMalformed, qty, qty2)
	}
	if typ != typeResponse {
		return nil, nil
	}

	// el frame no trae hora: se reutiliza la del último fix
	deviceTime := time.Now().UTC()
	if f, ok := s.LastFix(); ok {
		deviceTime = f.Time
	}
	rec := codec.NewRecord(Protocol, s)
	rec.UseLastFix(s, deviceTime)
	rec.Attributes.SetString(codec.KeyResult, string(text))
	fw, hw := ParseVersion(string(text))
	if fw != "" {
		rec.Attributes.SetString(codec.KeyVersionFw, fw)
	}
	if hw != "" {
		rec.Attributes.SetString(codec.KeyVersionHw, hw)
	}
	return rec, nil
}
