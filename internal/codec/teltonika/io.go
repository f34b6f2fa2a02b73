package teltonika

import (
	"encoding/hex"
	"strconv"

	"gpscodec-svr/internal/codec"
)

// IDs de IO permanentes de la familia FMxxx.
const (
	// 1 byte
	DIn1        = 1
	DIn2        = 2
	DIn3        = 3
	GSMSignal   = 21
	GnssStatus  = 69
	BattLevel   = 113
	DOut1       = 179
	DOut2       = 180
	SleepMode   = 200
	Ignition    = 239
	Movement    = 240
	NetworkType = 237

	// 2 bytes
	AIn1         = 9
	ExtVolt      = 66
	BatteryVolt  = 67
	BattCurrent  = 68
	GnssPDOP     = 181
	GnssHDOP     = 182
	VehicleSpeed = 24
	GsmCellID    = 205
	GsmAreaCode  = 206

	// 4 bytes
	TotalOdometer = 16
	FuelUsedGPS   = 12
	TripOdometer  = 199
	ActiveGsmOp   = 241
)

// applyIO traduce un IO a atributo. Los no mapeados quedan como extra
// "io<ID>" con su valor entero, o en hex si el tamaño no es 1/2/4/8.
func applyIO(rec *codec.Record, e ioElement) {
	v, ok := ioUint(e.Value)
	if !ok {
		rec.Attributes.SetExtra("io"+strconv.Itoa(int(e.ID)), codec.StringValue(hex.EncodeToString(e.Value)))
		return
	}
	attrs := &rec.Attributes
	switch e.ID {
	case Ignition:
		attrs.SetBool(codec.KeyIgnition, v > 0)
	case Movement:
		attrs.SetBool(codec.KeyMotion, v > 0)
	case GSMSignal:
		attrs.SetInt(codec.KeyRSSI, int64(v))
	case BattLevel:
		attrs.SetInt(codec.KeyBatteryLevel, int64(v))
	case ExtVolt:
		attrs.SetFloat(codec.KeyPower, float64(v)*0.001)
	case BatteryVolt:
		attrs.SetFloat(codec.KeyBattery, float64(v)*0.001)
	case GnssPDOP:
		attrs.SetFloat(codec.KeyPDOP, float64(v)*0.1)
	case GnssHDOP:
		attrs.SetFloat(codec.KeyHDOP, float64(v)*0.1)
	case TotalOdometer:
		attrs.SetInt(codec.KeyOdometer, int64(v))
	case TripOdometer:
		attrs.SetInt(codec.KeyTripOdometer, int64(v))
	case DIn1, DIn2, DIn3:
		attrs.SetBool(codec.KeyIn(int(e.ID)), v > 0)
	case DOut1, DOut2:
		attrs.SetBool(codec.KeyOut(int(e.ID-DOut1+1)), v > 0)
	case AIn1:
		attrs.SetInt(codec.KeyADC(1), int64(v))
	default:
		attrs.SetExtra("io"+strconv.Itoa(int(e.ID)), codec.IntValue(int64(v)))
	}
}
