package gnuplotter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func startTestServer(metadata Metadata, broadcaster *FrameBroadcaster) (string, func()) {
	// Serve the handler directly; Run would bind a fixed port and try to open
	// a browser.
	s := NewHttpServer(broadcaster, "127.0.0.1", 0, metadata)
	srv := httptest.NewServer(s.Handler())
	return srv.URL, srv.Close
}

func dialWebSocket(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func readWSMessage(c *websocket.Conn) (WSMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	typ, buf, err := c.Read(ctx)
	if err != nil {
		return WSMessage{}, err
	}
	if typ != websocket.MessageBinary {
		return WSMessage{}, errors.New("expected a binary message")
	}
	return DecodeWSMessage(buf)
}

func expectMessage[T any](t *testing.T, c *websocket.Conn, msgType byte) T {
	t.Helper()
	msg, err := readWSMessage(c)
	if err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	if msg.Header.Type != msgType {
		t.Fatalf("message type = 0x%02x, want 0x%02x", msg.Header.Type, msgType)
	}
	payload, ok := msg.Payload.(T)
	if !ok {
		t.Fatalf("payload = %T", msg.Payload)
	}
	return payload
}

func expectNormalClose(t *testing.T, c *websocket.Conn) {
	t.Helper()
	_, err := readWSMessage(c)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v", err)
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestHTTPServer_Metadata(t *testing.T) {
	metadata := Metadata{
		WindowSize: 100,
		IntervalMs: 250,
		PreviewOptions: PreviewOptions{
			Title:   "latency",
			Columns: []string{"p50"},
		},
	}
	baseURL, cleanup := startTestServer(metadata, NewFrameBroadcaster())
	defer cleanup()

	resp, body := get(t, baseURL+"/metadata")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got Metadata
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if got.WindowSize != 100 || got.IntervalMs != 250 || got.PreviewOptions.Title != "latency" {
		t.Errorf("metadata = %+v", got)
	}
}

func TestHTTPServer_LatestFrame(t *testing.T) {
	b := NewFrameBroadcaster()
	baseURL, cleanup := startTestServer(Metadata{}, b)
	defer cleanup()

	for _, path := range []string{"/figure.svg", "/script"} {
		resp, _ := get(t, baseURL+path)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("GET %s before any frame: status %d, want 503", path, resp.StatusCode)
		}
	}

	b.Publish(context.Background(), Frame{Seq: 3, SVG: []byte("<svg/>"), Script: "plot $i0_0\n"})

	resp, body := get(t, baseURL+"/figure.svg")
	if resp.StatusCode != http.StatusOK || body != "<svg/>" {
		t.Errorf("GET /figure.svg: status %d body %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if seq := resp.Header.Get("X-Frame-Seq"); seq != "3" {
		t.Errorf("X-Frame-Seq = %q, want 3", seq)
	}

	resp, body = get(t, baseURL+"/script")
	if resp.StatusCode != http.StatusOK || body != "plot $i0_0\n" {
		t.Errorf("GET /script: status %d body %q", resp.StatusCode, body)
	}
}

func TestHTTPServer_WebSocket(t *testing.T) {
	t.Run("MetadataFramesAndEnd", func(t *testing.T) {
		ctx := context.Background()
		b := NewFrameBroadcaster()
		b.Publish(ctx, Frame{Seq: 1, SVG: []byte("<svg>1</svg>")})

		baseURL, cleanup := startTestServer(Metadata{WindowSize: 10}, b)
		defer cleanup()

		c := dialWebSocket(t, baseURL)

		metadata := expectMessage[Metadata](t, c, MessageTypeMetadata)
		if metadata.WindowSize != 10 {
			t.Errorf("metadata = %+v", metadata)
		}

		// The cached frame arrives on connect.
		frame := expectMessage[FrameMessage](t, c, MessageTypeFrame)
		if frame.Seq != 1 || string(frame.SVG) != "<svg>1</svg>" {
			t.Errorf("first frame = %+v", frame)
		}

		b.Publish(ctx, Frame{Seq: 2, SVG: []byte("<svg>2</svg>")})
		frame = expectMessage[FrameMessage](t, c, MessageTypeFrame)
		if frame.Seq != 2 || string(frame.SVG) != "<svg>2</svg>" {
			t.Errorf("second frame = %+v", frame)
		}

		b.End(ctx, nil)
		end := expectMessage[StreamEndMessage](t, c, MessageTypeStreamEnd)
		if end.Error {
			t.Errorf("end = %+v, want no error", end)
		}
		expectNormalClose(t, c)
	})

	t.Run("ConnectAfterFailedStream", func(t *testing.T) {
		ctx := context.Background()
		b := NewFrameBroadcaster()
		b.Publish(ctx, Frame{Seq: 9, SVG: []byte("<svg/>")})
		b.End(ctx, errors.New("input closed"))

		baseURL, cleanup := startTestServer(Metadata{}, b)
		defer cleanup()

		c := dialWebSocket(t, baseURL)
		expectMessage[Metadata](t, c, MessageTypeMetadata)
		if frame := expectMessage[FrameMessage](t, c, MessageTypeFrame); frame.Seq != 9 {
			t.Errorf("frame = %+v", frame)
		}
		end := expectMessage[StreamEndMessage](t, c, MessageTypeStreamEnd)
		if !end.Error || end.Msg != "input closed" {
			t.Errorf("end = %+v", end)
		}
		expectNormalClose(t, c)
	})

	t.Run("ClientCloseDeregisters", func(t *testing.T) {
		ctx := context.Background()
		b := NewFrameBroadcaster()
		baseURL, cleanup := startTestServer(Metadata{}, b)
		defer cleanup()

		c := dialWebSocket(t, baseURL)
		expectMessage[Metadata](t, c, MessageTypeMetadata)
		c.Close(websocket.StatusNormalClosure, "")

		deadline := time.Now().Add(time.Second)
		for {
			b.mutex.Lock()
			n := len(b.channelsForLiveUpdate)
			b.mutex.Unlock()
			if n == 0 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("%d channels still registered after client close", n)
			}
			time.Sleep(5 * time.Millisecond)
		}

		// Publishing to no clients must not block.
		b.Publish(ctx, Frame{Seq: 1})
	})
}
