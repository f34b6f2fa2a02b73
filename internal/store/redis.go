package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gpscodec-svr/internal/session"
)

const (
	provisionedKey = "devices:provisioned"
	defaultFixTTL  = 7 * 24 * time.Hour
)

// Redis implementa session.Provisioner y session.FixStore.
//
// Claves:
//
//	devices:provisioned   SET con los IMEI dados de alta
//	dev:<imei>:last       HASH con la última posición (expira con FixTTL)
type Redis struct {
	rdb    *redis.Client
	FixTTL time.Duration
}

// NewRedis conecta y hace ping antes de devolver el store.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisFromClient(rdb), nil
}

func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, FixTTL: defaultFixTTL}
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}

func (s *Redis) Known(ctx context.Context, imei string) (bool, error) {
	return s.rdb.SIsMember(ctx, provisionedKey, imei).Result()
}

// Provision da de alta uno o más IMEI.
func (s *Redis) Provision(ctx context.Context, imeis ...string) error {
	if len(imeis) == 0 {
		return nil
	}
	members := make([]interface{}, len(imeis))
	for i, imei := range imeis {
		members[i] = imei
	}
	return s.rdb.SAdd(ctx, provisionedKey, members...).Err()
}

func fixKey(imei string) string {
	return "dev:" + imei + ":last"
}

func (s *Redis) SaveFix(ctx context.Context, imei string, f session.Fix) error {
	key := fixKey(imei)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"time":   f.Time.UnixMilli(),
		"valid":  strconv.FormatBool(f.Valid),
		"lat":    strconv.FormatFloat(f.Latitude, 'f', -1, 64),
		"lon":    strconv.FormatFloat(f.Longitude, 'f', -1, 64),
		"alt":    strconv.FormatFloat(f.Altitude, 'f', -1, 64),
		"speed":  strconv.FormatFloat(f.Speed, 'f', -1, 64),
		"course": strconv.FormatFloat(f.Course, 'f', -1, 64),
	})
	if s.FixTTL > 0 {
		pipe.Expire(ctx, key, s.FixTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Redis) LoadFix(ctx context.Context, imei string) (session.Fix, bool, error) {
	vals, err := s.rdb.HGetAll(ctx, fixKey(imei)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(vals) == 0) {
		return session.Fix{}, false, nil
	}
	if err != nil {
		return session.Fix{}, false, err
	}
	ms, err := strconv.ParseInt(vals["time"], 10, 64)
	if err != nil {
		return session.Fix{}, false, fmt.Errorf("store: bad fix time for %s: %w", imei, err)
	}
	f := session.Fix{Time: time.UnixMilli(ms).UTC()}
	f.Valid, _ = strconv.ParseBool(vals["valid"])
	f.Latitude, _ = strconv.ParseFloat(vals["lat"], 64)
	f.Longitude, _ = strconv.ParseFloat(vals["lon"], 64)
	f.Altitude, _ = strconv.ParseFloat(vals["alt"], 64)
	f.Speed, _ = strconv.ParseFloat(vals["speed"], 64)
	f.Course, _ = strconv.ParseFloat(vals["course"], 64)
	return f, true, nil
}
