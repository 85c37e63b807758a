package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	messagesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quarrywire",
			Subsystem: "transport",
			Name:      "messages_read_total",
			Help:      "Messages parsed off the connection.",
		},
		[]string{"conn"},
	)
	messagesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quarrywire",
			Subsystem: "transport",
			Name:      "messages_written_total",
			Help:      "Messages fully drained to the connection.",
		},
		[]string{"conn"},
	)
	bytesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quarrywire",
			Subsystem: "transport",
			Name:      "bytes_read_total",
			Help:      "Bytes ingested into the read buffer.",
		},
		[]string{"conn"},
	)
	bytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quarrywire",
			Subsystem: "transport",
			Name:      "bytes_written_total",
			Help:      "Bytes accepted by the connection on write.",
		},
		[]string{"conn"},
	)
	wouldBlock = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quarrywire",
			Subsystem: "transport",
			Name:      "would_block_total",
			Help:      "Would-block signals absorbed per direction.",
		},
		[]string{"conn", "direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesRead, messagesWritten, bytesRead, bytesWritten, wouldBlock)
	})
}

// MetricsHandler returns the Prometheus scrape handler with the transport
// counters registered.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordMessageRead(conn string) {
	RegisterMetrics()
	messagesRead.WithLabelValues(conn).Inc()
}

func RecordBytesRead(conn string, bytes int) {
	RegisterMetrics()
	bytesRead.WithLabelValues(conn).Add(float64(bytes))
}

func RecordMessageWritten(conn string) {
	RegisterMetrics()
	messagesWritten.WithLabelValues(conn).Inc()
}

func RecordBytesWritten(conn string, bytes int) {
	RegisterMetrics()
	bytesWritten.WithLabelValues(conn).Add(float64(bytes))
}

func RecordWouldBlock(conn, direction string) {
	RegisterMetrics()
	wouldBlock.WithLabelValues(conn, direction).Inc()
}
