package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpscodec-svr/internal/codec"
)

func TestCalcFix(t *testing.T) {
	assert.Equal(t, 1, CalcFix(4, 19.4, -99.1))
	assert.Equal(t, 0, CalcFix(3, 19.4, -99.1))
	assert.Equal(t, 0, CalcFix(8, 0, 0))
	assert.Equal(t, 0, CalcFix(8, 91, 10))
}

func TestDecideMsgType(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DecideMsgType(false, now.Add(-time.Minute), now))
	assert.Equal(t, 0, DecideMsgType(false, now.Add(-3*time.Minute), now))
	assert.Equal(t, 0, DecideMsgType(true, now, now))
	assert.Equal(t, 1, DecideMsgType(false, time.Time{}, now))
}

func TestFromRecord(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := &codec.Record{
		Protocol:   "teltonika",
		DeviceID:   "356307042441013",
		SessionID:  "s-1",
		Valid:      true,
		Latitude:   19.4326,
		Longitude:  -99.1332,
		Speed:      codec.KnotsFromKph(54),
		Course:     89.6,
		DeviceTime: now.Add(-30 * time.Second),
		FixTime:    now.Add(-30 * time.Second),
	}
	rec.Attributes.SetInt(codec.KeySatellites, 11)
	rec.Attributes.SetBool(codec.KeyIgnition, true)

	tr := FromRecord(rec, false, now)
	assert.Equal(t, "356307042441013", tr.IMEI)
	assert.Equal(t, "teltonika", tr.Protocol)
	assert.Equal(t, 54, tr.Spd)
	assert.Equal(t, 90, tr.Crs)
	assert.Equal(t, 11, tr.Sats)
	assert.Equal(t, 1, tr.Fix)
	assert.Equal(t, 1, tr.MsgType)
	assert.Equal(t, "2024-01-01T11:59:30Z", tr.Datetime)

	b, err := ToJSON(tr)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, true, m["attributes"].(map[string]any)["ignition"])
	assert.NotContains(t, m, "network")
}

func TestFromRecordWithoutSatellites(t *testing.T) {
	now := time.Now()
	rec := &codec.Record{Valid: true, Latitude: 52.4, Longitude: 13.3, DeviceTime: now, FixTime: now}
	assert.Equal(t, 1, FromRecord(rec, false, now).Fix)

	rec.Outdated = true
	assert.Equal(t, 0, FromRecord(rec, false, now).Fix)
}
