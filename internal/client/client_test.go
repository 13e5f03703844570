package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NotCreative21/taurus/internal/ws"
)

func startRelay(t *testing.T, inbound chan ws.Frame) (*ws.Registry, string) {
	t.Helper()
	reg := ws.NewRegistry(0)
	s := ws.NewServer(reg, "/lupus", func(_ string, f ws.Frame) { inbound <- f })
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return reg, "ws" + strings.TrimPrefix(srv.URL, "http") + "/lupus"
}

func waitSubscribers(t *testing.T, reg *ws.Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscribers = %d, want %d", reg.Count(), want)
}

func TestClientRoundTrip(t *testing.T) {
	inbound := make(chan ws.Frame, 1)
	reg, url := startRelay(t, inbound)

	c := New(url)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()
	waitSubscribers(t, reg, 1)

	if err := c.Send(ws.Frame{Kind: ws.KindCommand, Payload: "surv list"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case f := <-inbound:
		if f.Kind != ws.KindCommand || f.Payload != "surv list" {
			t.Errorf("server got %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}

	reg.Broadcast(ws.Frame{Kind: ws.KindChatOut, Payload: "[surv]<Alice> hi\n"})
	f, err := c.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Kind != ws.KindChatOut || f.Payload != "[surv]<Alice> hi\n" {
		t.Errorf("Read = %+v", f)
	}
}

func TestClientCloseUnregisters(t *testing.T) {
	reg, url := startRelay(t, make(chan ws.Frame, 1))
	c := New(url)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, reg, 1)

	c.Close()
	waitSubscribers(t, reg, 0)

	if err := c.Send(ws.Frame{Kind: ws.KindChatIn, Payload: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Close = %v, want ErrNotConnected", err)
	}
	if _, err := c.Read(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Read after Close = %v, want ErrNotConnected", err)
	}
}

func TestConnectRefused(t *testing.T) {
	c := New("ws://127.0.0.1:1/lupus")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestWithTopics(t *testing.T) {
	got, err := WithTopics("ws://host:8080/lupus", ws.KindChatOut, ws.KindStatus)
	if err != nil {
		t.Fatal(err)
	}
	if got != "ws://host:8080/lupus?topics=CHAT_OUT%2CSTATUS" {
		t.Errorf("WithTopics = %q", got)
	}

	got, _ = WithTopics("ws://host:8080/lupus")
	if got != "ws://host:8080/lupus" {
		t.Errorf("WithTopics without kinds = %q", got)
	}
}
