package monitor

import (
	"sync"

	"github.com/schidstorm/udp_capture/pkg/capture"
)

const subscriberQueueSize = 128

type SubscriberID int

// subscriberQueue is a bounded queue feeding one monitor client. Enqueue
// never blocks; a slow client just loses packets, the same policy the ring
// applies under backpressure.
type subscriberQueue struct {
	packets chan capture.Packet
}

func newSubscriberQueue() subscriberQueue {
	return subscriberQueue{
		packets: make(chan capture.Packet, subscriberQueueSize),
	}
}

func (q subscriberQueue) Enqueue(pkt capture.Packet) {
	select {
	case q.packets <- pkt:
	default:
	}
}

func (q subscriberQueue) Dequeue() capture.Packet {
	return <-q.packets
}

// Fanout distributes drained batches to any number of attached subscribers.
// It implements capture.BatchSink and is fed from the capture consumer
// goroutine only; subscribers attach and detach from their own goroutines.
type Fanout struct {
	mutex    sync.Mutex
	attached map[SubscriberID]subscriberQueue
	nextID   SubscriberID
}

func NewFanout() *Fanout {
	return &Fanout{
		attached: make(map[SubscriberID]subscriberQueue),
	}
}

func (f *Fanout) ConsumeBatch(batch []capture.Packet) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if len(f.attached) == 0 {
		return
	}

	for _, pkt := range batch {
		for _, queue := range f.attached {
			queue.Enqueue(pkt)
		}
	}
}

func (f *Fanout) Attach() (subscriberQueue, SubscriberID) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	id := f.nextID
	f.nextID++
	f.attached[id] = newSubscriberQueue()
	return f.attached[id], id
}

func (f *Fanout) Detach(id SubscriberID) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	delete(f.attached, id)
}
