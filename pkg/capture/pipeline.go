package capture

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/schidstorm/udp_capture/pkg/spsc"
)

// DefaultRingCapacity is the default ring size, roughly one second of
// buffering at high datagram rates.
const DefaultRingCapacity = 1 << 16

// Config holds the capture pipeline settings.
type Config struct {
	// ListenAddr is the UDP address to bind.
	ListenAddr string

	// RawLogPath is the append-only raw capture file.
	RawLogPath string

	// RingCapacity must be a power of two. Zero selects
	// DefaultRingCapacity.
	RingCapacity int
}

// Pipeline owns the socket, the raw log, the ring and the two loop
// goroutines. The producer and consumer are the only parties that ever
// touch the ring.
type Pipeline struct {
	conn     *net.UDPConn
	rawLog   *RawLog
	ring     *spsc.Ring[Packet]
	producer *Producer
	consumer *Consumer
}

// NewPipeline binds the socket, opens the raw capture file and builds both
// loops. Any failure here is fatal to startup; neither loop has run yet.
func NewPipeline(cfg Config, sink BatchSink, reporter Reporter) (*Pipeline, error) {
	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = DefaultRingCapacity
	}

	ring, err := spsc.New[Packet](cfg.RingCapacity)
	if err != nil {
		return nil, err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.ListenAddr, err)
	}

	rawLog, err := OpenRawLog(cfg.RawLogPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().Str("address", conn.LocalAddr().String()).Msg("Listening on UDP address")
	log.Info().Str("path", rawLog.Path()).Msg("Appending raw capture to file")

	notify := make(chan struct{}, 1)

	return &Pipeline{
		conn:     conn,
		rawLog:   rawLog,
		ring:     ring,
		producer: NewProducer(conn, ring, rawLog, notify),
		consumer: NewConsumer(ring, notify, sink, reporter),
	}, nil
}

// Run starts both loops and blocks until ctx is cancelled and the shutdown
// sequence completes: the producer stops first, then the consumer drains the
// remaining queued packets and exits.
func (p *Pipeline) Run(ctx context.Context) {
	consumerCtx, stopConsumer := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p.producer.Run(ctx)
		stopConsumer()
	}()

	go func() {
		defer wg.Done()
		p.consumer.Run(consumerCtx)
	}()

	wg.Wait()
}

// LocalAddr returns the bound socket address, useful when binding port 0.
func (p *Pipeline) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

func (p *Pipeline) Close() error {
	err := p.conn.Close()
	if cerr := p.rawLog.Close(); err == nil {
		err = cerr
	}
	return err
}
