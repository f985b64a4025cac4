package bus

import "main/internal/schema"

// Topic groups events for broadcast-rail subscriptions.
type Topic uint8

const (
	_topic_beg Topic = iota
	TopicBars
	TopicSignals
	TopicOrders
	TopicTrades
	TopicControl
	_topic_end
)

func (t Topic) IsAvailable() bool {
	return t > _topic_beg && t < _topic_end
}

// TopicOf maps an event type to its broadcast topic.
func TopicOf(eventType schema.EventType) Topic {
	switch eventType {
	case schema.EventBar:
		return TopicBars
	case schema.EventSignal:
		return TopicSignals
	case schema.EventOrderIntent, schema.EventOrderAck, schema.EventReject:
		return TopicOrders
	case schema.EventTrade:
		return TopicTrades
	case schema.EventHalt:
		return TopicControl
	default:
		return _topic_beg
	}
}
