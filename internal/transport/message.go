package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ssured/drawbot/internal/value"
)

// Message is one protocol message: a tuple, or an observed-set announcement
// when Tuple is nil.
type Message struct {
	Tuple    *value.ChangeTuple
	Subject  value.Subject
	Observed bool
}

// TupleMessage wraps a change tuple without its previous value.
func TupleMessage(t value.ChangeTuple) Message {
	stripped := t.Strip()
	return Message{Tuple: &stripped}
}

// ObservedMessage announces that subject entered or left the observed-set.
func ObservedMessage(subject value.Subject, observed bool) Message {
	return Message{Subject: subject, Observed: observed}
}

type tupleWire struct {
	Tuple value.ChangeTuple `json:"tuple"`
}

type observedWire struct {
	Subject  value.Subject `json:"subject"`
	Observed bool          `json:"observed"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Tuple != nil {
		return json.Marshal(tupleWire{Tuple: *m.Tuple})
	}
	return json.Marshal(observedWire{Subject: m.Subject, Observed: m.Observed})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tuple    json.RawMessage `json:"tuple"`
		Subject  json.RawMessage `json:"subject"`
		Observed *bool           `json:"observed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message: %w", err)
	}

	if raw.Tuple != nil {
		var t value.ChangeTuple
		if err := json.Unmarshal(raw.Tuple, &t); err != nil {
			return fmt.Errorf("message: %w", err)
		}
		*m = Message{Tuple: &t}
		return nil
	}

	if raw.Subject == nil || raw.Observed == nil {
		return errors.New("message: want a tuple or a subject with observed")
	}
	var subject value.Subject
	if err := json.Unmarshal(raw.Subject, &subject); err != nil {
		return fmt.Errorf("message subject: %w", err)
	}
	*m = Message{Subject: subject, Observed: *raw.Observed}
	return nil
}

func (m Message) String() string {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("message(%v)", err)
	}
	return string(data)
}
