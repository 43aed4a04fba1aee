package capture

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/schidstorm/udp_capture/pkg/spsc"
)

const (
	// BatchMax bounds per-iteration latency so a sustained input rate never
	// starves the reporting step.
	BatchMax = 1024

	reportPeriod = time.Second
)

// BatchSink receives each drained batch from the consumer goroutine. The
// slice is reused between calls; implementations must not retain it, though
// they may retain the Packets themselves.
type BatchSink interface {
	ConsumeBatch(batch []Packet)
}

// WindowReport is one completed reporting window.
type WindowReport struct {
	Count int
	Start time.Time
	End   time.Time
}

// Reporter observes completed reporting windows.
type Reporter interface {
	Report(WindowReport)
}

// Consumer drains the ring in bounded batches and reports throughput once
// per reporting period. It is the only goroutine that calls TryPop. The sink
// and reporter are both optional.
type Consumer struct {
	ring     *spsc.Ring[Packet]
	notify   <-chan struct{}
	sink     BatchSink
	reporter Reporter
}

func NewConsumer(ring *spsc.Ring[Packet], notify <-chan struct{}, sink BatchSink, reporter Reporter) *Consumer {
	return &Consumer{
		ring:     ring,
		notify:   notify,
		sink:     sink,
		reporter: reporter,
	}
}

// Run drains until ctx is cancelled, then performs a final drain of whatever
// is still queued and emits a last report. The caller must guarantee the
// producer has stopped, or stops with ctx, so the final drain terminates.
func (c *Consumer) Run(ctx context.Context) {
	batch := make([]Packet, 0, BatchMax)
	ticker := time.NewTicker(reportPeriod)
	defer ticker.Stop()

	count := 0
	windowStart := time.Now()

	flush := func() {
		log.Info().Msgf("recv/s ≈ %d", count)
		if c.reporter != nil {
			c.reporter.Report(WindowReport{
				Count: count,
				Start: windowStart,
				End:   time.Now(),
			})
		}
		count = 0
		windowStart = time.Now()
	}

	for {
		batch = c.drainBatch(batch)

		if len(batch) > 0 {
			count += len(batch)

			select {
			case <-ticker.C:
				flush()
			default:
			}
			continue
		}

		// Ring empty: wait for the producer's wake-up instead of
		// busy-polling.
		select {
		case <-c.notify:
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				batch = c.drainBatch(batch)
				if len(batch) == 0 {
					break
				}
				count += len(batch)
			}
			flush()
			return
		}
	}
}

// drainBatch pops up to BatchMax packets into batch (reusing its storage)
// and hands the batch to the sink. Dequeue order is exactly enqueue order.
func (c *Consumer) drainBatch(batch []Packet) []Packet {
	batch = batch[:0]
	for len(batch) < BatchMax {
		pkt, ok := c.ring.TryPop()
		if !ok {
			break
		}
		batch = append(batch, pkt)
	}

	if len(batch) == 0 {
		return batch
	}

	PacketsProcessed.Add(float64(len(batch)))
	QueueOccupancy.Set(float64(c.ring.Len()))

	if c.sink != nil {
		c.sink.ConsumeBatch(batch)
	}

	return batch
}
