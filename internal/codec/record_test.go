package codec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpscodec-svr/internal/session"
)

func TestUseLastFix(t *testing.T) {
	reg := session.NewRegistry(session.Options{})
	s, err := reg.ResolveOrCreate(context.Background(), "123456789012345")
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := NewRecord("test", s)
	rec.UseLastFix(s, now)
	assert.True(t, rec.Outdated)
	assert.Equal(t, now, rec.FixTime)
	assert.False(t, rec.Valid)

	fixTime := now.Add(-time.Minute)
	s.SetFix(session.Fix{Time: fixTime, Valid: true, Latitude: 10, Longitude: 20})

	rec = NewRecord("test", s)
	rec.UseLastFix(s, now)
	assert.Equal(t, now, rec.DeviceTime)
	assert.Equal(t, fixTime, rec.FixTime)
	assert.True(t, rec.Valid)
	assert.Equal(t, 10.0, rec.Latitude)
	assert.Equal(t, 20.0, rec.Longitude)
	assert.Equal(t, s.ID.String(), rec.SessionID)
}

func TestAttachNetwork(t *testing.T) {
	rec := &Record{}
	rec.AttachNetwork(&Network{})
	assert.Nil(t, rec.Network)

	n := &Network{}
	n.AddCellTower(CellTower{MCC: 262, MNC: 1, LAC: 1, CellID: 2})
	rec.AttachNetwork(n)
	require.NotNil(t, rec.Network)
	assert.Len(t, rec.Network.CellTowers, 1)
}
