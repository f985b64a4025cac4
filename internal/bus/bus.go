package bus

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/wal"
)

var (
	ErrBusClosed    = errors.New("event bus closed")
	ErrUnknownTopic = errors.New("unknown topic")
)

// Event is the unit delivered on the broadcast rail.
type Event struct {
	Topic   Topic
	Header  schema.EventHeader
	Payload []byte
}

// Subscriber receives broadcast events for one topic over a bounded channel.
// When the subscriber falls behind, events are dropped for it; the durable
// rail remains the system of record.
type Subscriber struct {
	topic Topic
	ch    chan Event
}

// Events returns the subscriber's delivery channel. It is closed when the
// bus shuts down or the subscription is cancelled.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Topic returns the subscribed topic.
func (s *Subscriber) Topic() Topic {
	return s.topic
}

// Bus publishes every event on two rails: a durable WAL append (the system
// of record, preserving publish order) and a best-effort fan-out to live
// subscribers. Publish fails only when the durable rail fails; the broadcast
// rail never blocks and never fails the caller.
type Bus struct {
	w       *wal.Writer
	source  uint16
	seq     uint64
	metrics *obs.Metrics

	mu     sync.Mutex
	subs   map[Topic][]*Subscriber
	closed bool
}

// New creates a bus over the given durable writer.
func New(w *wal.Writer, source uint16, metrics *obs.Metrics) *Bus {
	return &Bus{
		w:       w,
		source:  source,
		metrics: metrics,
		subs:    make(map[Topic][]*Subscriber),
	}
}

// Publish assigns the next sequence number, appends to the durable rail,
// then fans out. The returned header carries the assigned sequence.
func (b *Bus) Publish(eventType schema.EventType, tsEvent, tsRecv int64, traceID uint64, payload []byte) (schema.EventHeader, error) {
	b.seq++
	header := schema.NewHeader(eventType, b.source, b.seq, tsEvent, tsRecv)
	if traceID == 0 {
		traceID = b.seq
	}
	header.TraceID = traceID

	if err := b.w.Append(header, payload); err != nil {
		return header, errors.Wrap(err, "durable append")
	}
	b.metrics.ObserveEvent(header)

	b.broadcast(TopicOf(eventType), header, payload)
	return header, nil
}

// LastSeq returns the sequence of the most recently published event.
func (b *Bus) LastSeq() uint64 {
	return b.seq
}

// ResumeFrom seeds the sequence counter after recovery.
func (b *Bus) ResumeFrom(seq uint64) {
	if seq > b.seq {
		b.seq = seq
	}
}

// Subscribe attaches a bounded subscriber to a topic. The cancel function
// detaches it and closes its channel.
func (b *Bus) Subscribe(topic Topic, buffer int) (*Subscriber, func(), error) {
	if !topic.IsAvailable() {
		return nil, nil, ErrUnknownTopic
	}
	if buffer <= 0 {
		buffer = 1
	}
	sub := &Subscriber{topic: topic, ch: make(chan Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrBusClosed
	}
	b.subs[topic] = append(b.subs[topic], sub)

	cancel := func() { b.unsubscribe(sub) }
	return sub, cancel, nil
}

// Close detaches all subscribers and closes their channels. The durable
// writer is owned by the caller and closed separately.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
}

func (b *Bus) broadcast(topic Topic, header schema.EventHeader, payload []byte) {
	if !topic.IsAvailable() {
		return
	}
	b.mu.Lock()
	subs := b.subs[topic]
	if len(subs) == 0 {
		b.mu.Unlock()
		return
	}
	// Subscribers hold the payload beyond this call; the caller may reuse
	// its buffer, so copy once per publish.
	var copied []byte
	if len(payload) > 0 {
		copied = make([]byte, len(payload))
		copy(copied, payload)
	}
	event := Event{Topic: topic, Header: header, Payload: copied}
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			b.metrics.IncBroadcastDrop()
		}
	}
	b.mu.Unlock()
}

func (b *Bus) unsubscribe(target *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	subs := b.subs[target.topic]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.topic] = append(subs[:i], subs[i+1:]...)
			close(target.ch)
			return
		}
	}
}

// RecoverAll re-reads the durable rail from a cursor, delivering every
// event in original publish order.
func RecoverAll(ctx context.Context, cfg wal.ScanConfig, fn func(Event) error) error {
	return Recover(ctx, cfg, _topic_beg, fn)
}

// Recover re-reads the durable rail from a cursor, delivering events for one
// topic in original publish order. Consumers that missed broadcast messages
// use this to catch up; fromSeq 0 recovers full history.
func Recover(ctx context.Context, cfg wal.ScanConfig, topic Topic, fn func(Event) error) error {
	scanner, err := wal.NewScanner(cfg)
	if err != nil {
		return err
	}
	return scanner.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		eventTopic := TopicOf(header.Type)
		if topic.IsAvailable() && eventTopic != topic {
			return nil
		}
		var copied []byte
		if len(payload) > 0 {
			copied = make([]byte, len(payload))
			copy(copied, payload)
		}
		return fn(Event{Topic: eventTopic, Header: header, Payload: copied})
	})
}
