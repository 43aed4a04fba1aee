package capture

import "time"

// PacketMax is the largest datagram payload the pipeline accepts. Longer
// datagrams are truncated by the socket read.
const PacketMax = 2048

// Packet is one received datagram. The payload has its own backing array,
// never the producer's reused read buffer; ownership moves into the ring on
// push and out to the consumer on pop, so no packet is visible to both
// goroutines at once.
type Packet struct {
	Data       []byte
	Source     string
	ReceivedAt time.Time
}
