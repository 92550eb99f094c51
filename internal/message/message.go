// message.go
// Wire format shared by every transport: one JSON object per frame,
// {"type": ..., "value": ...}. Inbound frames are checked here before the
// session dispatches them; outbound frames are always compact JSON.

package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Type tags a frame.
type Type string

const (
	TypeUserChoose Type = "user_choose"
	TypeUserChosen Type = "user_chosen"
	TypeNewMessage Type = "new_message"
	TypeError      Type = "error"
)

// Message is the JSON payload exchanged between server and clients.
// Value is kept raw so relayed payloads are forwarded untouched.
type Message struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Decode validates one inbound frame. The returned error is always one of
// ErrNotUTF8, ErrNotJSON or ErrBadShape.
func Decode(frame []byte) (Message, error) {
	if !utf8.Valid(frame) {
		return Message{}, ErrNotUTF8
	}
	if !json.Valid(frame) {
		return Message{}, ErrNotJSON
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil {
		// valid JSON that is not an object
		return Message{}, ErrBadShape
	}

	typ, value := fields["type"], fields["value"]
	if !truthy(typ) || !truthy(value) {
		return Message{}, ErrBadShape
	}

	var name string
	if err := json.Unmarshal(typ, &name); err != nil {
		// a non-string tag never matches a known type
		name = string(bytes.TrimSpace(typ))
	}

	return Message{Type: Type(name), Value: value}, nil
}

// truthy reports whether raw is present and not one of null, false, 0, "",
// [] or {}.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	switch raw[0] {
	case 'n', 'f':
		return false
	case 't':
		return true
	case '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	case '[':
		var items []json.RawMessage
		return json.Unmarshal(raw, &items) == nil && len(items) > 0
	case '{':
		var fields map[string]json.RawMessage
		return json.Unmarshal(raw, &fields) == nil && len(fields) > 0
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			// out of float range, still non-zero
			return true
		}
		return f != 0
	}
}

// ParseID reads a client id from a user_choose value. Both JSON numbers and
// numeric strings are accepted; numbers must be integral. Integers outside the
// id range yield ErrNoClient, since no such client can be registered.
func ParseID(value json.RawMessage) (int64, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return 0, ErrBadID
	}

	switch value[0] {
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return 0, ErrBadID
		}
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrNoClient
		}
		if err != nil {
			return 0, ErrBadID
		}
		return id, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		id, err := strconv.ParseInt(string(value), 10, 64)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrNoClient
		}
		f, err := strconv.ParseFloat(string(value), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, ErrBadID
		}
		if f != math.Trunc(f) {
			return 0, ErrBadID
		}
		if math.Abs(f) >= math.MaxInt64 {
			return 0, ErrNoClient
		}
		return int64(f), nil
	default:
		return 0, ErrBadID
	}
}

// Encode renders m as compact JSON without HTML escaping, so forwarded
// payloads keep their original characters.
func Encode(m Message) ([]byte, error) {
	return encode(m)
}

// Text builds a frame whose value is a plain string.
func Text(t Type, text string) []byte {
	frame, _ := encode(struct {
		Type  Type   `json:"type"`
		Value string `json:"value"`
	}{t, text})

	return frame
}

// Forward builds the new_message frame delivered to a paired peer.
func Forward(value json.RawMessage) ([]byte, error) {
	return Encode(Message{Type: TypeNewMessage, Value: value})
}

func encode(v any) ([]byte, error) {
	buf := &bytes.Buffer{}

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
