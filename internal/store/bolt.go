package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"gpscodec-svr/internal/session"
)

var (
	devicesBucket = []byte("devices")
	fixesBucket   = []byte("fixes")
)

// Bolt es el backend local (un archivo) para despliegues sin Redis. Implementa
// session.Provisioner y session.FixStore.
type Bolt struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{devicesBucket, fixesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (s *Bolt) Close() error {
	return s.db.Close()
}

func (s *Bolt) Known(_ context.Context, imei string) (bool, error) {
	var known bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		known = tx.Bucket(devicesBucket).Get([]byte(imei)) != nil
		return nil
	})
	return known, err
}

func (s *Bolt) Provision(_ context.Context, imeis ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(devicesBucket)
		for _, imei := range imeis {
			if err := b.Put([]byte(imei), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Bolt) SaveFix(_ context.Context, imei string, f session.Fix) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(fixesBucket).Put([]byte(imei), raw)
	})
}

func (s *Bolt) LoadFix(_ context.Context, imei string) (session.Fix, bool, error) {
	var (
		f     session.Fix
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(fixesBucket).Get([]byte(imei))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &f)
	})
	if err != nil {
		return session.Fix{}, false, fmt.Errorf("store: load fix %s: %w", imei, err)
	}
	return f, found, nil
}
