package link

// DeviceState representa el tipo de evento del dispositivo
type DeviceState int

const (
	DeviceStateUnknown    DeviceState = iota
	DeviceStateConnect                // device_connect: true
	DeviceStateDisconnect             // device_disconnect: true
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStateConnect:
		return "connect"
	case DeviceStateDisconnect:
		return "disconnect"
	}
	return "unknown"
}
