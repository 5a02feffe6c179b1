package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"dashtui/chat"
)

// streamServer accepts one WebSocket connection, pushes the given frames,
// then echoes anything it receives into inbound.
func streamServer(t *testing.T, frames []string, inbound chan<- []byte, gotQuery chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			gotQuery <- r.URL.RawQuery
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		ctx := r.Context()
		for _, f := range frames {
			if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if inbound != nil {
				inbound <- data
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return strings.Replace(httpURL, "http://", "ws://", 1)
}

func TestTransportDeliversFramesInOrder(t *testing.T) {
	frames := []string{
		`{"type":"model_request_start"}`,
		`{"type":"text_delta","data":{"content":"Hi"}}`,
		`{"type":"final_result"}`,
	}
	srv := streamServer(t, frames, nil, nil)
	defer srv.Close()

	received := make(chan []byte, 8)
	tr := chat.NewTransport(wsURL(srv.URL), "", nil)
	tr.OnFrame(func(raw []byte) { received <- raw })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Disconnect()

	if !tr.Connected() {
		t.Error("Connected() = false after Connect()")
	}

	for i, want := range frames {
		select {
		case got := <-received:
			if string(got) != want {
				t.Errorf("frame %d = %s, want %s", i, got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("frame %d never arrived", i)
		}
	}
}

func TestTransportSendsQueryParams(t *testing.T) {
	gotQuery := make(chan string, 1)
	srv := streamServer(t, nil, nil, gotQuery)
	defer srv.Close()

	tokens := func(ctx context.Context) (string, error) { return "tok-abc", nil }
	tr := chat.NewTransport(wsURL(srv.URL), "kitchen", tokens)
	tr.OnFrame(func([]byte) {})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Disconnect()

	select {
	case q := <-gotQuery:
		if !strings.Contains(q, "token=tok-abc") {
			t.Errorf("query = %s, missing token", q)
		}
		if !strings.Contains(q, "area=kitchen") {
			t.Errorf("query = %s, missing area", q)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestTransportSend(t *testing.T) {
	inbound := make(chan []byte, 1)
	srv := streamServer(t, nil, inbound, nil)
	defer srv.Close()

	tr := chat.NewTransport(wsURL(srv.URL), "", nil)
	tr.OnFrame(func([]byte) {})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Disconnect()

	id := "conv-1"
	if err := tr.Send(chat.Outbound{Message: "hello", ConversationID: &id}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	select {
	case data := <-inbound:
		var out chat.Outbound
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("server received invalid JSON: %v", err)
		}
		if out.Message != "hello" || out.ConversationID == nil || *out.ConversationID != "conv-1" {
			t.Errorf("server received %+v", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the payload")
	}
}

func TestTransportConnectWhileConnecting(t *testing.T) {
	gotQuery := make(chan string, 4)
	srv := streamServer(t, nil, nil, gotQuery)
	defer srv.Close()

	// The token fetch parks the first Connect until released, holding it
	// mid-dial while the second call arrives.
	release := make(chan struct{})
	tokens := func(ctx context.Context) (string, error) {
		<-release
		return "tok", nil
	}
	tr := chat.NewTransport(wsURL(srv.URL), "", tokens)
	tr.OnFrame(func([]byte) {})

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- tr.Connect(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("overlapping Connect() error: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer tr.Disconnect()

	handshakes := 0
	for {
		select {
		case <-gotQuery:
			handshakes++
		case <-time.After(200 * time.Millisecond):
			if handshakes != 1 {
				t.Errorf("server saw %d handshakes, want exactly 1 socket", handshakes)
			}
			return
		}
	}
}

func TestTransportSendWhileDisconnected(t *testing.T) {
	tr := chat.NewTransport("ws://127.0.0.1:1/api/assistant/stream", "", nil)
	if err := tr.Send(chat.Outbound{Message: "void"}); err != nil {
		t.Errorf("Send() while disconnected = %v, want silent no-op", err)
	}
	if tr.Connected() {
		t.Error("Connected() = true without a connection")
	}
}

func TestTransportDisconnectIdempotent(t *testing.T) {
	srv := streamServer(t, nil, nil, nil)
	defer srv.Close()

	stateChanges := make(chan bool, 8)
	tr := chat.NewTransport(wsURL(srv.URL), "", nil)
	tr.OnFrame(func([]byte) {})
	tr.OnStateChange(func(connected bool) { stateChanges <- connected })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if got := <-stateChanges; !got {
		t.Error("first state change = disconnected, want connected")
	}

	tr.Disconnect()
	tr.Disconnect()
	tr.Disconnect()

	disconnects := 0
	for {
		select {
		case connected := <-stateChanges:
			if !connected {
				disconnects++
			}
		case <-time.After(200 * time.Millisecond):
			if disconnects != 1 {
				t.Errorf("observed %d disconnect notifications, want 1", disconnects)
			}
			return
		}
	}
}
