package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los contadores del servicio. Se registran contra el
// registry recibido para poder aislarlos en tests.
type Metrics struct {
	FeedConnections prometheus.Counter
	FramesRecv      prometheus.Counter
	FrameErrors     prometheus.Counter
	FixesAccepted   prometheus.Counter
	FixesRejected   *prometheus.CounterVec
	AnchorErrors    prometheus.Counter
	AnchorsTracked  prometheus.Gauge
	SmoothedAcc     prometheus.Gauge
	WindowSamples   prometheus.Gauge
	HeadingDegrees  prometheus.Gauge
	RedisSetErrors  prometheus.Counter
	ForwardErrors   prometheus.Counter
	LinkErrors      prometheus.Counter
	TickLatency     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FeedConnections: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_feed_connections_total",
			Help: "Total de conexiones TCP de dispositivos aceptadas",
		}),
		FramesRecv: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_frames_received_total",
			Help: "Total de líneas NDJSON recibidas de dispositivos",
		}),
		FrameErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_frame_errors_total",
			Help: "Líneas NDJSON que no se pudieron decodificar",
		}),
		FixesAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_fixes_accepted_total",
			Help: "Lecturas admitidas en la ventana de suavizado",
		}),
		FixesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmvision_fixes_rejected_total",
			Help: "Lecturas descartadas por motivo",
		}, []string{"reason"}),
		AnchorErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_anchor_errors_total",
			Help: "Anclas que no se pudieron proyectar en un tick",
		}),
		AnchorsTracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "farmvision_anchors_tracked",
			Help: "Anclas registradas",
		}),
		SmoothedAcc: f.NewGauge(prometheus.GaugeOpts{
			Name: "farmvision_smoothed_accuracy_meters",
			Help: "Precisión media de la ventana de suavizado",
		}),
		WindowSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "farmvision_window_samples",
			Help: "Muestras en la ventana de suavizado",
		}),
		HeadingDegrees: f.NewGauge(prometheus.GaugeOpts{
			Name: "farmvision_heading_degrees",
			Help: "Último heading de la brújula",
		}),
		RedisSetErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_redis_set_errors_total",
			Help: "Errores al escribir estados en Redis",
		}),
		ForwardErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_forward_errors_total",
			Help: "Errores al reenviar tracking por gRPC",
		}),
		LinkErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "farmvision_link_errors_total",
			Help: "Errores al enviar NDJSON al proxy",
		}),
		TickLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmvision_tick_latency_seconds",
			Help:    "Latencia de un tick de ubicación",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveTickLatency(start time.Time) {
	m.TickLatency.Observe(time.Since(start).Seconds())
}

// NewMux expone /metrics y /healthz.
func NewMux(g prometheus.Gatherer) *http.ServeMux {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
