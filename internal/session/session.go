package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Fix es la última posición conocida de un equipo.
type Fix struct {
	Time      time.Time `json:"time"`
	Valid     bool      `json:"valid"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Speed     float64   `json:"speed"`
	Course    float64   `json:"course"`
}

// Session asocia un identificador de equipo (IMEI) con las conexiones que lo
// usan. Vive mientras al menos una conexión la tenga enlazada.
type Session struct {
	ID      uuid.UUID
	IMEI    string
	Created time.Time

	mu      sync.RWMutex
	last    Fix
	hasLast bool

	refs    int // protegido por Registry.mu
	queried atomic.Bool
}

func newSession(imei string) *Session {
	return &Session{
		ID:      uuid.New(),
		IMEI:    imei,
		Created: time.Now(),
	}
}

// LastFix devuelve la última posición recordada, si hay.
func (s *Session) LastFix() (Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// SetFix reemplaza la última posición si f no es más vieja que la actual.
func (s *Session) SetFix(f Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasLast && f.Time.Before(s.last.Time) {
		return
	}
	s.last = f
	s.hasLast = true
}

// MarkQueried devuelve true sólo la primera vez; sirve para enviar una
// consulta al equipo una única vez por sesión.
func (s *Session) MarkQueried() bool {
	return s.queried.CompareAndSwap(false, true)
}
