package pipeline

import (
	"encoding/json"
	"math"
	"time"

	"gpscodec-svr/internal/codec"
)

// LiveWindow: un registro más viejo que esto se considera de buffer.
const LiveWindow = 120 * time.Second

func coordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

func CalcFix(sats int, lat, lon float64) int {
	if sats > 3 && coordsValid(lat, lon) {
		return 1
	}
	return 0
}

func DecideMsgType(isBatch bool, ts, now time.Time) int {
	if isBatch {
		return 0
	}
	if !ts.IsZero() && now.Sub(ts) > LiveWindow {
		return 0
	}
	return 1
}

// FromRecord aplana un registro. isBatch indica que llegó junto con otros en
// el mismo frame (p.ej. un AVL de Teltonika con registros en buffer).
func FromRecord(r *codec.Record, isBatch bool, now time.Time) *TrackingObject {
	tr := &TrackingObject{
		IMEI:      r.DeviceID,
		Protocol:  r.Protocol,
		SessionID: r.SessionID,
		Datetime:  r.DeviceTime.UTC().Format(time.RFC3339),
		FixTime:   r.FixTime.UTC().Format(time.RFC3339),
		Lat:       r.Latitude,
		Lon:       r.Longitude,
		Alt:       r.Altitude,
		Spd:       int(math.Round(codec.KphFromKnots(r.Speed))),
		Crs:       int(math.Round(r.Course)),
		Network:   r.Network,
		MsgType:   DecideMsgType(isBatch, r.DeviceTime, now),
		Outdated:  r.Outdated,
	}
	if r.Attributes.Len() > 0 {
		tr.Attributes = r.Attributes.Map()
	}

	// Sin conteo de satélites (HuaSheng) la validez del equipo manda.
	if sats, ok := r.Attributes.Int(codec.KeySatellites); ok {
		tr.Sats = int(sats)
		tr.Fix = CalcFix(tr.Sats, tr.Lat, tr.Lon)
	} else if r.Valid && coordsValid(tr.Lat, tr.Lon) {
		tr.Fix = 1
	}
	if r.Outdated {
		tr.Fix = 0
	}
	return tr
}

func ToJSON(tr *TrackingObject) ([]byte, error) {
	return json.Marshal(tr)
}
