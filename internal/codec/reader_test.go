package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderBigEndian(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0xFF, 0xFE, 'A', 'B', 0x00, ' '})

	assert.Equal(t, uint16(0x0102), r.Uint16())
	assert.Equal(t, uint8(0x03), r.Uint8())
	assert.Equal(t, int16(-2), r.Int16())
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, "AB", r.ASCII(4))
	require.NoError(t, r.Err())
	assert.Equal(t, 9, r.Offset())
}

func TestReaderLittleEndian(t *testing.T) {
	r := NewReaderLE([]byte{0x78, 0x56, 0x34, 0x12, 0xFF})
	assert.Equal(t, uint32(0x12345678), r.Uint32())
	assert.Equal(t, int8(-1), r.Int8())
	require.NoError(t, r.Err())
}

func TestReaderOverrunIsSticky(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})

	assert.Equal(t, uint32(0), r.Uint32())
	require.ErrorIs(t, r.Err(), ErrMalformed)

	// después del error todo devuelve cero, aunque haya bytes
	assert.Equal(t, uint8(0), r.Uint8())
	assert.Nil(t, r.Rest())
	assert.Equal(t, 0, r.Len())
}

func TestReaderSubIsBounded(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01, 0x02, 0x03})
	sub := r.Sub(2)

	assert.Equal(t, uint16(0x0001), sub.Uint16())
	sub.Uint8()
	require.ErrorIs(t, sub.Err(), ErrMalformed)

	require.NoError(t, r.Err())
	assert.Equal(t, uint16(0x0203), r.Uint16())
}

func TestBits(t *testing.T) {
	v := uint64(0b1011_0110)

	assert.True(t, Check(v, 1))
	assert.False(t, Check(v, 0))
	assert.True(t, Check(v, 7))
	assert.Equal(t, uint64(0b0110), To(v, 4))
	assert.Equal(t, uint64(0b011), Between(v, 4, 7))
	assert.Equal(t, uint64(0b101), From(v, 5))
}

func TestParseDigitTime(t *testing.T) {
	ts, err := ParseDigitTime("240315103045")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15T10:30:45Z", ts.Format("2006-01-02T15:04:05Z07:00"))

	for _, bad := range []string{"", "2403151030", "24031510304x", "241315103045", "240315253045"} {
		_, err := ParseDigitTime(bad)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}

func TestSpeedConversion(t *testing.T) {
	assert.InDelta(t, 19.4384, KnotsFromKph(36), 1e-4)
	assert.InDelta(t, 36.0, KphFromKnots(KnotsFromKph(36)), 1e-9)
}

func TestChecksums(t *testing.T) {
	check := []byte("123456789")
	assert.Equal(t, uint8(0xD0), CRC8ROHC(check))
	assert.Equal(t, uint16(0xBB3D), CRC16ARC(check))
}
