package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesTypedAccess(t *testing.T) {
	var a Attributes
	a.SetBool(KeyIgnition, true)
	a.SetFloat(KeyPower, 12.5)
	a.SetInt(KeyADC(2), 512)
	a.SetString(KeyVIN, "WDB123")
	a.SetExtra("averageSpeed", IntValue(40))

	ign, ok := a.Bool(KeyIgnition)
	assert.True(t, ok)
	assert.True(t, ign)

	_, ok = a.Int(KeyPower)
	assert.False(t, ok, "power is a float")

	adc, ok := a.Int(KeyADC(2))
	assert.True(t, ok)
	assert.Equal(t, int64(512), adc)

	vin, _ := a.Text(KeyVIN)
	assert.Equal(t, "WDB123", vin)
	assert.Equal(t, 5, a.Len())
	assert.False(t, a.Has(KeyRPM))
}

func TestAttributesKindMismatchPanics(t *testing.T) {
	var a Attributes
	assert.Panics(t, func() { a.SetInt(KeyIgnition, 1) })
	assert.Panics(t, func() { a.SetBool(Key("nope"), true) })
	assert.NotPanics(t, func() { a.SetBool(KeyIn(3), true) })
	assert.NotPanics(t, func() { a.SetBool(KeyOut(1), false) })
}

func TestAttributesJSON(t *testing.T) {
	rec := &Record{Protocol: "x"}
	rec.Attributes.SetInt(KeySatellites, 7)
	rec.SetAlarm(AlarmSOS)
	rec.SetAlarm(AlarmNone)

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var out struct {
		Attributes map[string]any `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, map[string]any{"sat": float64(7), "alarm": "sos"}, out.Attributes)
}
