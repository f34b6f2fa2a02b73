package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/codec/huasheng"
	"gpscodec-svr/internal/codec/teltonika"
	"gpscodec-svr/internal/dispatcher"
	"gpscodec-svr/internal/pipeline"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func huashengSession() []byte {
	login := huasheng.EncodeFrame(0, huasheng.MsgLogin, 1,
		huasheng.EncodeSubRecord(0x0003, []byte("862205051234567")))

	pos := binary.BigEndian.AppendUint16(nil, 0x8000)
	pos = binary.BigEndian.AppendUint16(pos, 0)
	pos = append(pos, "240315103045"...)
	pos = binary.BigEndian.AppendUint32(pos, 1338856)
	pos = binary.BigEndian.AppendUint32(pos, 5243700)
	pos = append(pos, 0, 36, 0, 90, 0, 10, 0, 1)

	out := huasheng.Escape(login)
	return append(out, huasheng.Escape(huasheng.EncodeFrame(0, huasheng.MsgPosition, 2, pos))...)
}

func decodeLines(t *testing.T, out *bytes.Buffer) []pipeline.TrackingObject {
	t.Helper()
	var got []pipeline.TrackingObject
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var tr pipeline.TrackingObject
		require.NoError(t, json.Unmarshal([]byte(line), &tr))
		got = append(got, tr)
	}
	return got
}

func TestReplayHex(t *testing.T) {
	var out bytes.Buffer
	rp, err := newReplayer(context.Background(), huasheng.Protocol, &out, quiet())
	require.NoError(t, err)

	require.NoError(t, rp.Feed("hex", nil, huashengSession()))
	rp.Close()

	got := decodeLines(t, &out)
	require.Len(t, got, 1)
	assert.Equal(t, "862205051234567", got[0].IMEI)
	assert.InDelta(t, 52.437, got[0].Lat, 1e-9)
	assert.Equal(t, 36, got[0].Spd)
}

// stallDecoder nunca completa un frame.
type stallDecoder struct{}

func (stallDecoder) Split([]byte) ([]byte, int, error) { return nil, 0, nil }
func (stallDecoder) Protocol() string                  { return "stall" }

func (stallDecoder) Decode(*codec.Conn, []byte) ([]*codec.Record, error) {
	return nil, nil
}

func TestReplayDropsFailedFlow(t *testing.T) {
	rp, err := newReplayer(context.Background(), huasheng.Protocol, io.Discard, quiet())
	require.NoError(t, err)
	created := 0
	rp.newDecoder = func() (codec.Decoder, error) {
		created++
		return stallDecoder{}, nil
	}

	chunk := make([]byte, codec.MaxFrameSize+1)
	require.NoError(t, rp.Feed("a", nil, chunk))
	require.ErrorIs(t, rp.Feed("a", nil, chunk), dispatcher.ErrBufferOverflow)
	assert.NotContains(t, rp.streams, "a")

	// los segmentos siguientes del flujo fallido se ignoran
	require.NoError(t, rp.Feed("a", nil, chunk))
	assert.NotContains(t, rp.streams, "a")
	assert.Equal(t, 1, created)

	// otros flujos siguen decodificándose
	require.NoError(t, rp.Feed("b", nil, []byte{1}))
	assert.Contains(t, rp.streams, "b")
	rp.Close()
}

func TestReplayUnknownProtocol(t *testing.T) {
	_, err := newReplayer(context.Background(), "gt06", io.Discard, quiet())
	require.Error(t, err)
}

func writePcap(t *testing.T, path string, dstPort uint16, payloads ...[]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	seq := uint32(1000)
	for i, p := range payloads {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP,
			SrcIP: net.IPv4(10, 0, 0, 2), DstIP: net.IPv4(10, 0, 0, 1),
		}
		tcp := &layers.TCP{SrcPort: 40000, DstPort: layers.TCPPort(dstPort), Seq: seq, ACK: true, PSH: true, Window: 1024}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(p)))

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000+int64(i), 0),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
		seq += uint32(len(p))
	}
}

func TestReplayPcap(t *testing.T) {
	session := huashengSession()
	path := filepath.Join(t.TempDir(), "huasheng.pcap")
	// el segmento corta el frame de posición por la mitad
	cut := len(session) - 10
	writePcap(t, path, 8001, session[:cut], session[cut:])

	var out bytes.Buffer
	rp, err := newReplayer(context.Background(), huasheng.Protocol, &out, quiet())
	require.NoError(t, err)
	require.NoError(t, rp.ReplayPcap(path, 8001))
	rp.Close()

	got := decodeLines(t, &out)
	require.Len(t, got, 1)
	assert.Equal(t, "862205051234567", got[0].IMEI)

	// filtro por puerto: nada que decodificar
	out.Reset()
	rp, err = newReplayer(context.Background(), huasheng.Protocol, &out, quiet())
	require.NoError(t, err)
	require.NoError(t, rp.ReplayPcap(path, 9999))
	rp.Close()
	assert.Zero(t, out.Len())
}

func TestReplayCommandHex(t *testing.T) {
	handshake := hex.EncodeToString(teltonika.EncodeHandshake("356307042441013"))

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"replay", "--protocol", teltonika.Protocol, "--hex", handshake})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Zero(t, out.Len(), "handshake yields no records")

	cmd = newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"replay", "--protocol", teltonika.Protocol})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}
