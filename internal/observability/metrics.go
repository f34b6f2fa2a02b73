package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TCPConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_tcp_connections_total",
		Help: "Total de conexiones TCP aceptadas",
	}, []string{"protocol"})
	HandshakeOK = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_handshake_ok_total",
		Help: "Total de sesiones enlazadas por login/IMEI",
	}, []string{"protocol"})
	FramesRecv = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_frames_received_total",
		Help: "Total de frames delimitados",
	}, []string{"protocol"})
	RecordsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_records_decoded_total",
		Help: "Total de registros de posición decodificados",
	}, []string{"protocol"})
	AcksSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_acks_sent_total",
		Help: "Total de respuestas escritas a los equipos",
	}, []string{"protocol"})
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_frames_dropped_total",
		Help: "Frames descartados por motivo",
	}, []string{"protocol", "reason"})
	ForwardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codec_forward_errors_total",
		Help: "Errores al reenviar registros",
	}, []string{"sink"})
	ParseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codec_parse_latency_seconds",
		Help:    "Latencia del parseo por frame",
		Buckets: prometheus.DefBuckets,
	}, []string{"protocol"})
)

func ObserveParseLatency(protocol string, start time.Time) {
	ParseLatency.WithLabelValues(protocol).Observe(time.Since(start).Seconds())
}

// StartMetricsServer sirve /metrics y /healthz hasta que ctx se cancela.
func StartMetricsServer(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
