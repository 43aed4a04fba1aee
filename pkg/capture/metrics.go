package capture

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PacketsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udp_capture_packets_received_total",
			Help: "Total number of datagrams read from the socket",
		},
	)
	PacketsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udp_capture_packets_dropped_total",
			Help: "Total number of datagrams dropped because the ring was full",
		},
	)
	PacketsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udp_capture_packets_processed_total",
			Help: "Total number of datagrams drained by the consumer",
		},
	)
	ReceiveErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udp_capture_receive_errors_total",
			Help: "Number of times reading from the UDP socket failed",
		},
	)
	RawLogWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "udp_capture_rawlog_write_errors_total",
			Help: "Number of times appending to the raw capture file failed",
		},
	)
	PacketSizeHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "udp_capture_packet_size_bytes",
			Help:    "Histogram of received datagram sizes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 6), // 64B to 2KB
		},
	)
	QueueOccupancy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "udp_capture_queue_occupancy",
			Help: "Ring occupancy sampled by the consumer",
		},
	)
)

// RegisterMetrics registers all pipeline collectors with the default
// prometheus registry. Call once at startup.
func RegisterMetrics() {
	prometheus.MustRegister(PacketsReceived)
	prometheus.MustRegister(PacketsDropped)
	prometheus.MustRegister(PacketsProcessed)
	prometheus.MustRegister(ReceiveErrors)
	prometheus.MustRegister(RawLogWriteErrors)
	prometheus.MustRegister(PacketSizeHistogram)
	prometheus.MustRegister(QueueOccupancy)
}
