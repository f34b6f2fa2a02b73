package pipeline

import "gpscodec-svr/internal/codec"

// TrackingObject es la forma plana que se reenvía a los sinks (proxy NDJSON
// y forwarder gRPC).
type TrackingObject struct {
	IMEI      string `json:"imei"`
	Protocol  string `json:"protocol"`
	SessionID string `json:"session_id,omitempty"`
	Datetime  string `json:"dt"`
	FixTime   string `json:"fix_dt"`

	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Alt  float64 `json:"alt"`
	Spd  int     `json:"spd"` // km/h
	Crs  int     `json:"crs"`
	Sats int     `json:"sats"`

	Attributes map[string]any `json:"attributes,omitempty"`
	Network    *codec.Network `json:"network,omitempty"`

	MsgType  int  `json:"msg_type"` // 1=live, 0=buffer
	Fix      int  `json:"fix"`      // 1 si hay fix válido y coords válidas
	Outdated bool `json:"outdated,omitempty"`
}
