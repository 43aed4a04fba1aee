package monitor

import (
	"bytes"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	prompbmarshal "github.com/VictoriaMetrics/VictoriaMetrics/lib/prompbmarshal"
	"github.com/golang/snappy"

	"github.com/schidstorm/udp_capture/pkg/capture"
)

// RemoteWriter ships each completed reporting window to a prometheus
// remote-write endpoint. It implements capture.Reporter; a failed write is
// logged (rate-limited) and never disturbs the pipeline.
type RemoteWriter struct {
	url      string
	hostname string
	client   *http.Client
	deferred deferredLogger
}

func NewRemoteWriter(url string) *RemoteWriter {
	hostname, _ := os.Hostname()

	return &RemoteWriter{
		url:      url,
		hostname: hostname,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (w *RemoteWriter) Report(rep capture.WindowReport) {
	w.write([]Metricer{windowMetric{rep}})
}

type windowMetric struct {
	rep capture.WindowReport
}

func (m windowMetric) ToMetric() Metric {
	return Metric{
		Name:   "udp_capture_window_packets",
		Labels: map[string]string{},
		Value:  float64(m.rep.Count),
		Time:   m.rep.End,
	}
}

func (w *RemoteWriter) write(metricers []Metricer) {
	serialized := serializeMetrics(metricers, w.hostname)
	w.post(serialized)
}

func serializeMetrics(metricers []Metricer, srcHostname string) []byte {
	timeseries := make([]prompbmarshal.TimeSeries, 0, len(metricers))
	for _, m := range metricers {
		metric := m.ToMetric()

		labels := []prompbmarshal.Label{
			{Name: "__name__", Value: metric.Name},
			{Name: "hostname", Value: srcHostname},
		}
		for k, v := range metric.Labels {
			labels = append(labels, prompbmarshal.Label{Name: k, Value: v})
		}

		sample := prompbmarshal.Sample{
			Value:     metric.Value,
			Timestamp: metric.Time.UnixMilli(),
		}

		ts := prompbmarshal.TimeSeries{
			Labels:  labels,
			Samples: []prompbmarshal.Sample{sample},
		}

		timeseries = append(timeseries, ts)
	}

	req := prompbmarshal.WriteRequest{
		Timeseries: timeseries,
	}

	data := req.MarshalProtobuf(nil)
	return snappy.Encode(nil, data)
}

func (w *RemoteWriter) post(data []byte) {
	log := w.deferred.Get()

	httpReq, err := http.NewRequest("POST", w.url, bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Msg("failed to create http request")
		return
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Msg("failed to send remote_write request")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		log.Warn().Int("status_code", resp.StatusCode).Msg("remote_write request failed")
	}
}

// deferredLogger rate-limits warning output so a down endpoint does not
// flood the log once per window.
type deferredLogger struct {
	lastTime time.Time
}

func (dl *deferredLogger) Get() zerolog.Logger {
	now := time.Now()
	if now.Sub(dl.lastTime) < time.Second*10 {
		return zerolog.Nop()
	}
	dl.lastTime = now
	return log.Logger
}
