package ws

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		in      string
		want    Frame
		wantErr bool
	}{
		{"CMD surv say hi", Frame{Kind: KindCommand, Payload: "surv say hi"}, false},
		{"CHAT_IN <bob> hello", Frame{Kind: KindChatIn, Payload: "<bob> hello"}, false},
		{"CHAT_OUT", Frame{Kind: KindChatOut}, false},
		{"HELLO world", Frame{}, true},
		{"", Frame{}, true},
		{"cmd lowercase", Frame{}, true},
	}
	for _, tt := range tests {
		got, err := Decode([]byte(tt.in))
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Decode(%q) error = %v, want ErrMalformedFrame", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Decode(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Decode(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestEncode(t *testing.T) {
	f := Frame{Kind: KindChatOut, Payload: "[surv]<a> b\n"}
	if got := string(f.Encode()); got != "CHAT_OUT [surv]<a> b\n" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestParseTopics(t *testing.T) {
	if got := ParseTopics(""); got != nil {
		t.Errorf("ParseTopics(\"\") = %v, want nil", got)
	}
	got := ParseTopics("chat_out, status,CMD,bogus")
	if len(got) != 2 || !got[KindChatOut] || !got[KindStatus] {
		t.Errorf("ParseTopics = %v, want CHAT_OUT and STATUS", got)
	}
	if got := ParseTopics("CMD"); got != nil {
		t.Errorf("ParseTopics(CMD) = %v, want nil (inbound kinds ignored)", got)
	}
}
