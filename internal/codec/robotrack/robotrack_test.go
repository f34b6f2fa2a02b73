package robotrack

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/session"
)

const testIMEI = "351234567890123"

func idFrame() []byte {
	body := make([]byte, 38)
	body[0] = MsgID
	copy(body[1:], "ROBOTRACK")
	copy(body[1+nameLen:], testIMEI)
	return Seal(body)
}

func status(body []byte) []byte {
	body = append(body, 0b1_011_0111) // movimiento, rssi 3, 7 satélites
	body = append(body, 0b111_0_0101) // carga, in2, batería 7/7
	body = append(body, 0xEC)         // -20 °C
	for _, adc := range []uint16{100, 200, 300} {
		body = binary.LittleEndian.AppendUint16(body, adc)
	}
	return body
}

func gpsFrame(ts time.Time, lat, lon int32, speed int8) []byte {
	body := []byte{MsgGPS}
	body = binary.LittleEndian.AppendUint32(body, uint32(ts.Unix()))
	body = binary.LittleEndian.AppendUint32(body, uint32(lat))
	body = binary.LittleEndian.AppendUint32(body, uint32(lon))
	body = append(body, byte(speed))
	return Seal(status(body))
}

func gsmFrame(ts time.Time) []byte {
	body := []byte{MsgGSM}
	body = binary.LittleEndian.AppendUint32(body, uint32(ts.Unix()))
	for _, v := range []uint16{250, 2, 0x1234, 0x5678} {
		body = binary.LittleEndian.AppendUint16(body, v)
	}
	body = append(body, 0)
	return Seal(status(body))
}

func newConn(out *bytes.Buffer) *codec.Conn {
	reg := session.NewRegistry(session.Options{})
	if out == nil {
		return codec.NewConn(context.Background(), reg, nil, nil, nil)
	}
	return codec.NewConn(context.Background(), reg, nil, out, nil)
}

func TestFrameSizes(t *testing.T) {
	assert.Len(t, idFrame(), 39)
	assert.Len(t, gpsFrame(time.Unix(0, 0), 0, 0, 0), 24)
	assert.Len(t, gsmFrame(time.Unix(0, 0)), 24)
	assert.Equal(t, []byte{MsgAck, 0x01, codec.CRC8ROHC([]byte{MsgAck, 0x01})}, EncodeAck(true))
}

func TestIdentificationAck(t *testing.T) {
	var out bytes.Buffer
	c := newConn(&out)

	records, err := New().Decode(c, idFrame())
	require.NoError(t, err)
	assert.Empty(t, records)
	require.NotNil(t, c.Session())
	assert.Equal(t, testIMEI, c.Session().IMEI)
	assert.Equal(t, EncodeAck(true), out.Bytes())
}

func TestGPSReport(t *testing.T) {
	c := newConn(nil)
	d := New()
	_, err := d.Decode(c, idFrame())
	require.NoError(t, err)

	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	records, err := d.Decode(c, gpsFrame(ts, 55751244, 37618423, 60))
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, ts, rec.FixTime)
	assert.True(t, rec.Valid)
	assert.InDelta(t, 55.751244, rec.Latitude, 1e-9)
	assert.InDelta(t, 37.618423, rec.Longitude, 1e-9)
	assert.InDelta(t, codec.KnotsFromKph(60), rec.Speed, 1e-9)

	a := &rec.Attributes
	sat, _ := a.Int(codec.KeySatellites)
	assert.Equal(t, int64(7), sat)
	rssi, _ := a.Int(codec.KeyRSSI)
	assert.Equal(t, int64(3), rssi)
	motion, _ := a.Bool(codec.KeyMotion)
	assert.True(t, motion)
	charge, _ := a.Bool(codec.KeyCharge)
	assert.True(t, charge)
	in2, _ := a.Bool(codec.KeyIn(2))
	assert.True(t, in2)
	in1, _ := a.Bool(codec.KeyIn(1))
	assert.False(t, in1)
	level, _ := a.Int(codec.KeyBatteryLevel)
	assert.Equal(t, int64(100), level)
	temp, _ := a.Int(codec.KeyDeviceTemp)
	assert.Equal(t, int64(-20), temp)
	adc3, _ := a.Int(codec.KeyADC(3))
	assert.Equal(t, int64(300), adc3)
}

func TestGSMUsesLastFix(t *testing.T) {
	c := newConn(nil)
	d := New()
	_, err := d.Decode(c, idFrame())
	require.NoError(t, err)

	fixTime := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	_, err = d.Decode(c, gpsFrame(fixTime, 55751244, 37618423, 0))
	require.NoError(t, err)

	gsmTime := fixTime.Add(5 * time.Minute)
	records, err := d.Decode(c, gsmFrame(gsmTime))
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.True(t, rec.Outdated)
	assert.Equal(t, gsmTime, rec.DeviceTime)
	assert.Equal(t, fixTime, rec.FixTime)
	assert.InDelta(t, 55.751244, rec.Latitude, 1e-9)
	require.NotNil(t, rec.Network)
	assert.Equal(t, []codec.CellTower{{MCC: 250, MNC: 2, LAC: 0x1234, CellID: 0x5678}}, rec.Network.CellTowers)
}

func TestReportWithoutSession(t *testing.T) {
	_, err := New().Decode(newConn(nil), gpsFrame(time.Unix(0, 0), 0, 0, 0))
	require.ErrorIs(t, err, codec.ErrUnbound)
}

func TestDecodeShortFrames(t *testing.T) {
	c := newConn(nil)
	d := New()
	_, err := d.Decode(c, idFrame())
	require.NoError(t, err)

	for _, frame := range [][]byte{nil, {MsgGPS}, Seal([]byte{MsgGPS}), Seal([]byte{MsgID, 'R'})} {
		_, err := d.Decode(c, frame)
		require.ErrorIs(t, err, codec.ErrMalformed)
	}
}

func TestSplitChecksumResync(t *testing.T) {
	bad := gpsFrame(time.Unix(1700000000, 0), 1, 2, 3)
	bad[5] ^= 0xFF
	good := gpsFrame(time.Unix(1700000100, 0), 1, 2, 3)
	buf := append(append([]byte{}, bad...), good...)

	_, n, err := Framer{}.Split(buf)
	require.ErrorIs(t, err, codec.ErrChecksum)
	assert.Equal(t, 24, n)

	frame, n, err := Framer{}.Split(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.Equal(t, good, frame)
}

func TestSplitUnknownTypeAndIncomplete(t *testing.T) {
	_, n, err := Framer{}.Split([]byte{0x42, 0x00})
	require.ErrorIs(t, err, codec.ErrFraming)
	assert.Equal(t, 1, n)

	frame, n, err := Framer{}.Split(idFrame()[:20])
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, frame)

	// IMAGE_DATA necesita el tamaño antes de saber el largo
	_, n, err = Framer{}.Split([]byte{MsgImageData, 0x10})
	require.NoError(t, err)
	assert.Zero(t, n)

	img := Seal(append([]byte{MsgImageData, 0x02, 0x00, 0, 0, 0, 0}, 0xAA, 0xBB))
	_, n, err = Framer{}.Split(img)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}
