package ws

import (
	"errors"
	"strings"
)

// Kind is the direction tag that leads every frame on the wire.
type Kind string

const (
	// Relay to subscriber.
	KindChatOut Kind = "CHAT_OUT"
	KindStatus  Kind = "STATUS"
	KindError   Kind = "ERROR"

	// Subscriber to game session.
	KindChatIn  Kind = "CHAT_IN"
	KindCommand Kind = "CMD"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one tagged text message: "<KIND> <payload>".
type Frame struct {
	Kind    Kind
	Payload string
}

// Outbound reports whether frames of this kind flow from the relay to subscribers.
func (k Kind) Outbound() bool {
	switch k {
	case KindChatOut, KindStatus, KindError:
		return true
	}
	return false
}

func (k Kind) valid() bool {
	switch k {
	case KindChatOut, KindStatus, KindError, KindChatIn, KindCommand:
		return true
	}
	return false
}

func (f Frame) Encode() []byte {
	return []byte(string(f.Kind) + " " + f.Payload)
}

// Decode parses a wire message. The payload may be empty but the tag must
// be a known kind.
func Decode(data []byte) (Frame, error) {
	kind, payload, _ := strings.Cut(string(data), " ")
	k := Kind(kind)
	if !k.valid() {
		return Frame{}, ErrMalformedFrame
	}
	return Frame{Kind: k, Payload: payload}, nil
}

// ParseTopics turns a comma separated list of kinds into a topic set. An
// empty list subscribes to every outbound kind. Unknown or inbound kinds
// are ignored.
func ParseTopics(s string) map[Kind]bool {
	topics := make(map[Kind]bool)
	for _, part := range strings.Split(s, ",") {
		k := Kind(strings.ToUpper(strings.TrimSpace(part)))
		if k.Outbound() {
			topics[k] = true
		}
	}
	if len(topics) == 0 {
		return nil
	}
	return topics
}
