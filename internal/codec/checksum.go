package codec

import (
	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
)

var (
	rohcTable = crc8.MakeTable(crc8.CRC8_ROHC)
	// CRC-16/ARC es el "CRC16 IBM" (poly 0xA001 reflejado, init 0) de Teltonika.
	arcTable = crc16.MakeTable(crc16.CRC16_ARC)
)

func CRC8ROHC(data []byte) uint8 {
	return crc8.Checksum(data, rohcTable)
}

func CRC16ARC(data []byte) uint16 {
	return crc16.Checksum(data, arcTable)
}
