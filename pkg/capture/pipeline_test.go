package capture

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineRejectsBadRingCapacity(t *testing.T) {
	_, err := NewPipeline(Config{
		ListenAddr:   "127.0.0.1:0",
		RawLogPath:   filepath.Join(t.TempDir(), "capture.raw"),
		RingCapacity: 1000,
	}, nil, nil)
	assert.Error(t, err)
}

func TestPipelineRejectsBadListenAddr(t *testing.T) {
	_, err := NewPipeline(Config{
		ListenAddr: "not-an-address:abc",
		RawLogPath: filepath.Join(t.TempDir(), "capture.raw"),
	}, nil, nil)
	assert.Error(t, err)
}

func TestPipelineEndToEnd(t *testing.T) {
	rawLogPath := filepath.Join(t.TempDir(), "capture.raw")

	sink := newRecordingSink()
	pipeline, err := NewPipeline(Config{
		ListenAddr:   "127.0.0.1:0",
		RawLogPath:   rawLogPath,
		RingCapacity: 1024,
	}, sink, nil)
	require.NoError(t, err)
	defer pipeline.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pipeline.Run(ctx)
		close(done)
	}()

	conn, err := net.Dial("udp", pipeline.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	payloads := []string{"payload1", "payload2", "payload3", "payload4", "payload5"}
	for _, p := range payloads {
		_, err := conn.Write([]byte(p))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	got := sink.collect(len(payloads), 5*time.Second)
	require.Len(t, got, len(payloads), "consumer must see every sent datagram")

	received := make([]string, 0, len(got))
	for _, pkt := range got {
		received = append(received, string(pkt.Data))
		assert.NotEmpty(t, pkt.Source)
		assert.False(t, pkt.ReceivedAt.IsZero())
	}
	assert.ElementsMatch(t, payloads, received)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}

	// Every datagram was appended to the raw capture before the ring push.
	content, err := os.ReadFile(rawLogPath)
	require.NoError(t, err)

	total := 0
	for _, p := range payloads {
		total += len(p)
		assert.Contains(t, string(content), p)
	}
	assert.Equal(t, total, len(content))
}
