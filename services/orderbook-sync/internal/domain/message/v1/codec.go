package messagev1

import (
	"encoding/json"
	"fmt"
)

// CorrelationHeader is the record header carrying the correlation id of a message.
const CorrelationHeader = "correlation-id"

// Decode parses a canonical JSON message and validates it.
func Decode(data []byte) (Message, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var msg Message
	switch probe.Type {
	case KindSnapshot:
		msg = &Snapshot{}
	case KindLevel:
		msg = &Level{}
	case KindNewOrder:
		msg = &NewOrder{}
	case KindOrderDone:
		msg = &OrderDone{}
	case KindChangedOrder:
		msg = &ChangedOrder{}
	case KindTicker:
		msg = &Ticker{}
	case KindTrade:
		msg = &Trade{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, probe.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedMessage, probe.Type, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode marshals m with its type discriminator set.
func Encode(m Message) ([]byte, error) {
	m.header().Type = m.Kind()
	return json.Marshal(m)
}
