package capture

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/schidstorm/udp_capture/pkg/spsc"
)

const (
	// readDeadline bounds each blocking socket read so cancellation is
	// observed promptly. The netpoller provides the readiness wait; a
	// deadline expiry just means no datagram arrived in the window.
	readDeadline = 50 * time.Millisecond

	// receiveErrorBackoff is the delay after a receive error other than a
	// deadline expiry. Such errors are treated as transient and never
	// terminate the loop.
	receiveErrorBackoff = 10 * time.Millisecond
)

// Producer reads datagrams from the socket, appends each payload to the raw
// log and then offers it to the ring. It is the only goroutine that calls
// TryPush. When the ring is full the packet is dropped and counted; the raw
// log has already seen it, so a full ring never affects the raw capture.
type Producer struct {
	conn   *net.UDPConn
	ring   *spsc.Ring[Packet]
	rawLog *RawLog
	notify chan<- struct{}
}

func NewProducer(conn *net.UDPConn, ring *spsc.Ring[Packet], rawLog *RawLog, notify chan<- struct{}) *Producer {
	return &Producer{
		conn:   conn,
		ring:   ring,
		rawLog: rawLog,
		notify: notify,
	}
}

// Run receives until ctx is cancelled. No receive or sink error terminates
// the loop.
func (p *Producer) Run(ctx context.Context) {
	buf := make([]byte, PacketMax)

	for ctx.Err() == nil {
		if err := p.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			log.Error().Err(err).Msg("failed to set read deadline")
		}

		n, src, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// No data in this window, not an error.
				continue
			}

			ReceiveErrors.Inc()
			log.Debug().Err(err).Msg("error reading from UDP socket")

			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		// Copy out of the reused read buffer; ownership of data moves into
		// the ring on a successful push.
		data := make([]byte, n)
		copy(data, buf[:n])

		if err := p.rawLog.Append(data); err != nil {
			RawLogWriteErrors.Inc()
			log.Warn().Err(err).Msg("raw capture write failed")
		}

		PacketsReceived.Inc()
		PacketSizeHistogram.Observe(float64(n))

		pkt := Packet{
			Data:       data,
			Source:     src.String(),
			ReceivedAt: time.Now(),
		}

		if !p.ring.TryPush(pkt) {
			// Expected backpressure outcome: drop and continue.
			PacketsDropped.Inc()
			continue
		}

		p.wake()
	}
}

// wake nudges the consumer without ever blocking the receive loop.
func (p *Producer) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
