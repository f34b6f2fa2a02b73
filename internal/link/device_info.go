package link

import (
	"net"
	"strconv"
)

// DeviceInfo es la vista de la sesión que se envía al proxy
type DeviceInfo struct {
	IMEI       string
	Protocol   string
	SessionID  string
	RemoteIP   string
	RemotePort int
	State      DeviceState
}

// SplitRemote separa la dirección remota en IP y puerto.
func SplitRemote(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	p, _ := strconv.Atoi(port)
	return host, p
}
