package mail

import (
	"encoding/json"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// Encode serialises the message with the named encoding.
func (m *Message) Encode(encoding string) ([]byte, error) {
	switch encoding {
	case EncodingJSON, "":
		return json.Marshal(m)
	case EncodingMsgpack:
		return m.MarshalMsg(nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, encoding)
	}
}

// Decode is the inverse of Encode.
func Decode(encoding string, data []byte) (*Message, error) {
	m := &Message{}
	switch encoding {
	case EncodingJSON, "":
		if err := json.Unmarshal(data, m); err != nil {
			return nil, err
		}
	case EncodingMsgpack:
		if _, err := m.UnmarshalMsg(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, encoding)
	}
	return m, nil
}

// MarshalMsg implements msgp.Marshaler.
func (m *Message) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendMapHeader(b, 6)
	o = msgp.AppendString(o, "id")
	o = msgp.AppendString(o, m.ID)
	o = msgp.AppendString(o, "peer_address")
	o = msgp.AppendString(o, m.PeerAddress)
	o = msgp.AppendString(o, "sender")
	o = msgp.AppendString(o, m.Sender)
	o = msgp.AppendString(o, "recipients")
	o = msgp.AppendArrayHeader(o, uint32(len(m.Recipients)))
	for _, rcpt := range m.Recipients {
		o = msgp.AppendString(o, rcpt)
	}
	o = msgp.AppendString(o, "body")
	o = msgp.AppendString(o, m.Body)
	o = msgp.AppendString(o, "received_at")
	o = msgp.AppendTime(o, m.ReceivedAt)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler. Unknown keys are skipped.
func (m *Message) UnmarshalMsg(bts []byte) ([]byte, error) {
	fields, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}

	for ; fields > 0; fields-- {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}

		switch key {
		case "id":
			m.ID, bts, err = msgp.ReadStringBytes(bts)
		case "peer_address":
			m.PeerAddress, bts, err = msgp.ReadStringBytes(bts)
		case "sender":
			m.Sender, bts, err = msgp.ReadStringBytes(bts)
		case "recipients":
			var n uint32
			n, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			// every string takes at least one byte
			if uint64(n) > uint64(len(bts)) {
				return bts, msgp.ErrShortBytes
			}
			m.Recipients = make([]string, n)
			for i := range m.Recipients {
				m.Recipients[i], bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					return bts, err
				}
			}
		case "body":
			m.Body, bts, err = msgp.ReadStringBytes(bts)
		case "received_at":
			m.ReceivedAt, bts, err = msgp.ReadTimeBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, fmt.Errorf("field %s: %w", key, err)
		}
	}

	return bts, nil
}
