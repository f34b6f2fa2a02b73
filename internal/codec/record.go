package codec

import (
	"time"

	"gpscodec-svr/internal/session"
)

type CellTower struct {
	MCC    int `json:"mobileCountryCode"`
	MNC    int `json:"mobileNetworkCode"`
	LAC    int `json:"locationAreaCode"`
	CellID int `json:"cellId"`
	Signal int `json:"signalStrength,omitempty"`
}

type WifiAccessPoint struct {
	MAC    string `json:"macAddress"`
	Signal int    `json:"signalStrength"`
}

// Network agrupa las observaciones de red de un registro.
type Network struct {
	CellTowers       []CellTower       `json:"cellTowers,omitempty"`
	WifiAccessPoints []WifiAccessPoint `json:"wifiAccessPoints,omitempty"`
}

func (n *Network) AddCellTower(c CellTower) {
	n.CellTowers = append(n.CellTowers, c)
}

func (n *Network) AddWifiAccessPoint(w WifiAccessPoint) {
	n.WifiAccessPoints = append(n.WifiAccessPoints, w)
}

// Empty indica que no se decodificó ninguna torre ni punto de acceso.
func (n *Network) Empty() bool {
	return n == nil || len(n.CellTowers) == 0 && len(n.WifiAccessPoints) == 0
}

// Record es el registro canónico de posición y telemetría.
type Record struct {
	Protocol   string     `json:"protocol"`
	DeviceID   string     `json:"deviceId"`
	SessionID  string     `json:"sessionId"`
	DeviceTime time.Time  `json:"deviceTime"`
	FixTime    time.Time  `json:"fixTime"`
	Valid      bool       `json:"valid"`
	Outdated   bool       `json:"outdated,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   float64    `json:"altitude"`
	Speed      float64    `json:"speed"` // nudos
	Course     float64    `json:"course"`
	Attributes Attributes `json:"attributes"`
	Network    *Network   `json:"network,omitempty"`
}

// NewRecord crea un registro vacío asociado a la sesión.
func NewRecord(protocol string, s *session.Session) *Record {
	return &Record{
		Protocol:  protocol,
		DeviceID:  s.IMEI,
		SessionID: s.ID.String(),
	}
}

// SetTime fija el tiempo del equipo y del fix a la vez.
func (r *Record) SetTime(t time.Time) {
	r.DeviceTime = t
	r.FixTime = t
}

// Fix devuelve la posición del registro en la forma que guarda la sesión.
func (r *Record) Fix() session.Fix {
	return session.Fix{
		Time:      r.FixTime,
		Valid:     r.Valid,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Altitude:  r.Altitude,
		Speed:     r.Speed,
		Course:    r.Course,
	}
}

// UseLastFix completa la posición con la última conocida de la sesión, para
// dialectos cuyo frame no trae fix. El registro queda marcado como Outdated.
func (r *Record) UseLastFix(s *session.Session, deviceTime time.Time) {
	r.DeviceTime = deviceTime
	r.Outdated = true
	f, ok := s.LastFix()
	if !ok {
		r.FixTime = deviceTime
		return
	}
	r.FixTime = f.Time
	r.Valid = f.Valid
	r.Latitude = f.Latitude
	r.Longitude = f.Longitude
	r.Altitude = f.Altitude
	r.Speed = f.Speed
	r.Course = f.Course
}

// AttachNetwork asigna la red sólo si tiene al menos una observación.
func (r *Record) AttachNetwork(n *Network) {
	if !n.Empty() {
		r.Network = n
	}
}
