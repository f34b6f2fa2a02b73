// Package dialect resuelve un decodificador por nombre de protocolo.
package dialect

import (
	"fmt"
	"sort"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/codec/huasheng"
	"gpscodec-svr/internal/codec/robotrack"
	"gpscodec-svr/internal/codec/teltonika"
)

var constructors = map[string]func() codec.Decoder{
	huasheng.Protocol:  func() codec.Decoder { return huasheng.New() },
	robotrack.Protocol: func() codec.Decoder { return robotrack.New() },
	teltonika.Protocol: func() codec.Decoder { return teltonika.New() },
}

// New devuelve el decodificador del protocolo.
func New(name string) (codec.Decoder, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("dialect: unknown protocol %q (known: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lista los protocolos soportados.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
