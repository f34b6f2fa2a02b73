package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"

	"gpscodec-svr/internal/codec"
	"gpscodec-svr/internal/codec/dialect"
	"gpscodec-svr/internal/dispatcher"
	"gpscodec-svr/internal/observability"
	"gpscodec-svr/internal/pipeline"
)

const (
	ProtocolOptionName = "protocol"
	PcapOptionName     = "pcap"
	HexOptionName      = "hex"
	PortOptionName     = "port"
)

func newReplayCommand() *cobra.Command {
	var protocol, pcapPath, hexInput, logLevel string
	var port int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Decode captured device traffic and print records as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (pcapPath == "") == (hexInput == "") {
				return fmt.Errorf("exactly one of --%s or --%s is required", PcapOptionName, HexOptionName)
			}
			logger := observability.NewLoggerTo(cmd.ErrOrStderr(), logLevel)
			rp, err := newReplayer(cmd.Context(), protocol, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer rp.Close()

			if hexInput != "" {
				data, err := hex.DecodeString(strings.Join(strings.Fields(hexInput), ""))
				if err != nil {
					return fmt.Errorf("--%s: %w", HexOptionName, err)
				}
				return rp.Feed("hex", nil, data)
			}
			return rp.ReplayPcap(pcapPath, port)
		},
	}
	cmd.Flags().StringVar(&protocol, ProtocolOptionName, "", fmt.Sprintf("Protocol to decode, one of %v", dialect.Names()))
	cmd.Flags().StringVar(&pcapPath, PcapOptionName, "", "pcap or pcapng capture with device to server TCP traffic")
	cmd.Flags().StringVar(&hexInput, HexOptionName, "", "Raw device bytes as a hex string")
	cmd.Flags().IntVar(&port, PortOptionName, 0, "Only replay TCP segments sent to this server port")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for decoder diagnostics (stderr)")
	_ = cmd.MarkFlagRequired(ProtocolOptionName)
	return cmd
}

// jsonSink escribe cada registro como una línea JSON.
type jsonSink struct {
	enc *json.Encoder
}

func (s *jsonSink) Name() string { return "stdout" }

func (s *jsonSink) Forward(_ context.Context, tr *pipeline.TrackingObject) error {
	return s.enc.Encode(tr)
}

// replayer decodifica flujos sin camino de respuesta: no se escriben ACKs.
type replayer struct {
	ctx        context.Context
	newDecoder func() (codec.Decoder, error)
	d          *dispatcher.Dispatcher
	logger     *slog.Logger
	streams    map[string]*dispatcher.Stream
	order      []string

	// flujos abortados: el resto de sus segmentos se ignora
	failed map[string]struct{}
}

func newReplayer(ctx context.Context, protocol string, out io.Writer, logger *slog.Logger) (*replayer, error) {
	if _, err := dialect.New(protocol); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d := dispatcher.New(dispatcher.Options{
		Sinks:  []dispatcher.Sink{&jsonSink{enc: json.NewEncoder(out)}},
		Logger: logger,
	})
	return &replayer{
		ctx:        ctx,
		newDecoder: func() (codec.Decoder, error) { return dialect.New(protocol) },
		d:          d,
		logger:     logger,
		streams:    make(map[string]*dispatcher.Stream),
		failed:     make(map[string]struct{}),
	}, nil
}

// Feed entrega bytes del flujo key; cada flujo tiene su propia conexión
// lógica y por lo tanto su propia sesión.
//
// Un flujo que falla se cierra y se ignoran sus bytes siguientes.
func (rp *replayer) Feed(key string, remote net.Addr, data []byte) error {
	if _, ok := rp.failed[key]; ok {
		return nil
	}
	st, ok := rp.streams[key]
	if !ok {
		dec, err := rp.newDecoder()
		if err != nil {
			return err
		}
		c := codec.NewConn(rp.ctx, rp.d.Registry(), remote, nil, rp.logger.With("flow", key))
		st = rp.d.NewStream(c, dec)
		rp.streams[key] = st
		rp.order = append(rp.order, key)
	}
	if err := st.Feed(data); err != nil {
		st.Close()
		delete(rp.streams, key)
		rp.failed[key] = struct{}{}
		return err
	}
	return nil
}

func (rp *replayer) Close() {
	for _, key := range rp.order {
		st, ok := rp.streams[key]
		if !ok {
			continue
		}
		if n := st.Pending(); n > 0 {
			rp.logger.Warn("incomplete frame at end of flow", "flow", key, "pending", n)
		}
		st.Close()
	}
}

// ReplayPcap lee segmentos TCP con payload en orden de captura. No reordena
// ni elimina retransmisiones.
func (rp *replayer) ReplayPcap(path string, port int) error {
	src, closeFn, err := openCapture(path)
	if err != nil {
		return err
	}
	defer closeFn()

	for pkt := range src.Packets() {
		if rp.ctx.Err() != nil {
			return rp.ctx.Err()
		}
		tcpLayer, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if !ok || len(tcpLayer.Payload) == 0 || pkt.NetworkLayer() == nil {
			continue
		}
		if port > 0 && int(tcpLayer.DstPort) != port {
			continue
		}
		netFlow := pkt.NetworkLayer().NetworkFlow()
		key := netFlow.String() + "/" + tcpLayer.TransportFlow().String()
		remote := &net.TCPAddr{IP: net.IP(netFlow.Src().Raw()), Port: int(tcpLayer.SrcPort)}
		if err := rp.Feed(key, remote, tcpLayer.Payload); err != nil {
			rp.logger.Warn("flow aborted", "flow", key, "err", err)
		}
	}
	return nil
}

func openCapture(path string) (*gopacket.PacketSource, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = f.Close() }

	if r, err := pcapgo.NewReader(f); err == nil {
		return gopacket.NewPacketSource(r, r.LinkType()), closeFn, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		closeFn()
		return nil, nil, err
	}
	ng, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		closeFn()
		return nil, nil, errors.New("replay: not a pcap or pcapng file: " + path)
	}
	return gopacket.NewPacketSource(ng, ng.LinkType()), closeFn, nil
}
