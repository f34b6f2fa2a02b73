package codec

import (
	"errors"

	"gpscodec-svr/internal/session"
)

// MaxFrameSize acota lo que un Framer acepta antes de declarar basura.
const MaxFrameSize = 64 * 1024

var (
	// ErrChecksum: frame bien delimitado pero corrupto. Se descarta y se sigue.
	ErrChecksum = errors.New("codec: checksum mismatch")
	// ErrFraming: bytes que no forman un frame (basura, tipo desconocido).
	ErrFraming = errors.New("codec: framing error")
	// ErrMalformed: longitudes o campos inconsistentes dentro del frame.
	ErrMalformed = errors.New("codec: malformed frame")
	// ErrUnbound: frame de telemetría sin sesión enlazada en la conexión.
	ErrUnbound = errors.New("codec: no device session bound")
	// ErrUnknownDevice: el registro no reconoce el identificador.
	ErrUnknownDevice = session.ErrUnknownDevice
)

// Framer extrae un frame lógico del inicio de buf.
//
// consumed == 0 y err == nil significa "incompleto, esperar más bytes".
// Con ErrChecksum o ErrFraming, consumed indica cuántos bytes descartar.
type Framer interface {
	Split(buf []byte) (frame []byte, consumed int, err error)
}

// Decoder es un dialecto de protocolo. Decode no hace I/O salvo escribir el
// ACK a través de Conn.Reply; devuelve cero o más registros.
type Decoder interface {
	Framer
	Protocol() string
	Decode(c *Conn, frame []byte) ([]*Record, error)
}

// Dropped indica si el error corresponde a un frame que se descarta en
// silencio sin afectar a la conexión. Hoy son todos los del núcleo.
func Dropped(err error) bool {
	return errors.Is(err, ErrChecksum) || errors.Is(err, ErrFraming) ||
		errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnbound) ||
		errors.Is(err, ErrUnknownDevice)
}
