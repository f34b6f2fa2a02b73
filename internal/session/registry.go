package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

var (
	// ErrUnknownDevice: modo estricto y el identificador no está provisionado.
	ErrUnknownDevice = errors.New("session: unknown device")
	// ErrInvalidIdentifier: identificador vacío o con caracteres no imprimibles.
	ErrInvalidIdentifier = errors.New("session: invalid device identifier")
)

// Provisioner responde si un identificador está dado de alta.
type Provisioner interface {
	Known(ctx context.Context, imei string) (bool, error)
}

// FixStore persiste la última posición entre reconexiones.
type FixStore interface {
	LoadFix(ctx context.Context, imei string) (Fix, bool, error)
	SaveFix(ctx context.Context, imei string, f Fix) error
}

type Options struct {
	// Strict exige que el Provisioner conozca el identificador.
	Strict      bool
	Provisioner Provisioner
	Fixes       FixStore
	Logger      *slog.Logger
}

// Registry es el registro compartido de sesiones. Es seguro para uso
// concurrente; nunca mantiene el lock durante una llamada al Provisioner o al
// FixStore.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	lg := opts.Logger
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		opts:     opts,
		logger:   lg.With("component", "session"),
		sessions: make(map[string]*Session),
	}
}

// NormalizeIdentifier recorta relleno y valida que el identificador sea
// imprimible.
func NormalizeIdentifier(imei string) (string, error) {
	imei = strings.Trim(imei, "\x00 \r\n")
	if imei == "" || len(imei) > 32 {
		return "", ErrInvalidIdentifier
	}
	for i := 0; i < len(imei); i++ {
		if imei[i] < 0x21 || imei[i] > 0x7E {
			return "", ErrInvalidIdentifier
		}
	}
	return imei, nil
}

// ResolveOrCreate devuelve la sesión del identificador, creándola si hace
// falta, y suma una referencia. Cada llamada exitosa debe tener su Release.
// Dos registros simultáneos del mismo identificador obtienen la misma sesión:
// gana la primera en insertarse.
func (r *Registry) ResolveOrCreate(ctx context.Context, imei string) (*Session, error) {
	imei, err := NormalizeIdentifier(imei)
	if err != nil {
		return nil, err
	}
	if s := r.acquire(imei); s != nil {
		return s, nil
	}

	if r.opts.Strict {
		if r.opts.Provisioner == nil {
			return nil, fmt.Errorf("%w: %s (no provisioner)", ErrUnknownDevice, imei)
		}
		known, err := r.opts.Provisioner.Known(ctx, imei)
		if err != nil {
			return nil, fmt.Errorf("session: provisioner lookup %s: %w", imei, err)
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, imei)
		}
	}

	s := newSession(imei)
	if r.opts.Fixes != nil {
		f, ok, err := r.opts.Fixes.LoadFix(ctx, imei)
		if err != nil {
			r.logger.Warn("load last fix failed", "imei", imei, "err", err)
		} else if ok {
			s.SetFix(f)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[imei]; ok {
		existing.refs++
		return existing, nil
	}
	s.refs = 1
	r.sessions[imei] = s
	r.logger.Debug("session created", "imei", imei, "session", s.ID.String())
	return s, nil
}

func (r *Registry) acquire(imei string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[imei]
	if !ok {
		return nil
	}
	s.refs++
	return s
}

// Lookup devuelve la sesión activa del identificador sin sumar referencia.
func (r *Registry) Lookup(imei string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[imei]
	return s, ok
}

// Release resta una referencia; con cero la sesión sale del registro.
func (r *Registry) Release(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
	if s.refs == 0 && r.sessions[s.IMEI] == s {
		delete(r.sessions, s.IMEI)
		r.logger.Debug("session released", "imei", s.IMEI, "session", s.ID.String())
	}
}

// RememberFix actualiza la última posición en memoria y, si hay, en el
// FixStore. Una posición más vieja que la recordada no se persiste.
func (r *Registry) RememberFix(ctx context.Context, s *Session, f Fix) error {
	s.SetFix(f)
	if r.opts.Fixes == nil {
		return nil
	}
	if last, _ := s.LastFix(); !last.Time.Equal(f.Time) {
		return nil
	}
	if err := r.opts.Fixes.SaveFix(ctx, s.IMEI, f); err != nil {
		return fmt.Errorf("session: save fix %s: %w", s.IMEI, err)
	}
	return nil
}

// Len devuelve el número de sesiones activas.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// AllowList es un Provisioner estático, normalmente desde configuración.
type AllowList map[string]struct{}

func NewAllowList(imeis ...string) AllowList {
	a := make(AllowList, len(imeis))
	for _, imei := range imeis {
		if imei = strings.TrimSpace(imei); imei != "" {
			a[imei] = struct{}{}
		}
	}
	return a
}

func (a AllowList) Known(_ context.Context, imei string) (bool, error) {
	_, ok := a[imei]
	return ok, nil
}
