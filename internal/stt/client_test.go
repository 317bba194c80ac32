package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

func TestSessionReceivesFinalSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("encoding") != "pcm_s16le" {
			t.Errorf("expected pcm_s16le encoding, got %q", r.URL.Query().Get("encoding"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Expect one binary audio frame before replying.
		mt, frame, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read audio frame: %v", err)
			return
		}
		if mt != websocket.BinaryMessage || len(frame) != 4 {
			t.Errorf("expected 4-byte binary frame, got type=%d len=%d", mt, len(frame))
		}

		conn.WriteJSON(map[string]any{"type": "transcript", "text": "partial", "is_final": false})
		conn.WriteJSON(map[string]any{
			"type": "transcript", "text": "Can we ship today?", "is_final": true,
			"t0": 1000.0, "t1": 2500.0, "speaker": "alice",
		})
		conn.WriteJSON(map[string]string{"type": "done"})
	}))
	defer srv.Close()

	opts := Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), SampleRate: 16000}
	s, err := Dial(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	if err := s.SendAudio([]byte{0, 1, 2, 3}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	var got []Segment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case seg, ok := <-s.Segments():
			if !ok {
				if len(got) != 2 {
					t.Fatalf("expected 2 segments, got %d", len(got))
				}
				if got[0].Final {
					t.Error("first segment should be partial")
				}
				final := got[1]
				if !final.Final || final.Text != "Can we ship today?" {
					t.Errorf("unexpected final segment %+v", final)
				}
				if final.T0 != 1000 || final.T1 != 2500 || final.Speaker != "alice" {
					t.Errorf("timing/speaker not propagated: %+v", final)
				}
				if err := s.Err(); err != nil {
					t.Errorf("unexpected session error: %v", err)
				}
				return
			}
			got = append(got, seg)
		case <-timeout:
			t.Fatal("timed out waiting for segments")
		}
	}
}

func TestSessionServerErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"type": "error", "error": "quota exceeded"})
	}))
	defer srv.Close()

	opts := Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	s, err := Dial(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	for range s.Segments() {
	}
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestPumpSendsAndFinalizes(t *testing.T) {
	frames := make(chan int, 16)
	finalized := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch mt {
			case websocket.BinaryMessage:
				frames <- len(data)
			case websocket.TextMessage:
				if strings.Contains(string(data), "finalize") {
					finalized <- struct{}{}
					conn.WriteJSON(map[string]string{"type": "done"})
				}
			}
		}
	}))
	defer srv.Close()

	opts := Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	s, err := Dial(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	audio := strings.NewReader(strings.Repeat("a", pumpChunkSize+100))
	if err := s.Pump(context.Background(), audio); err != nil {
		t.Fatalf("pump: %v", err)
	}

	total := 0
	timeout := time.After(5 * time.Second)
	for total < pumpChunkSize+100 {
		select {
		case n := <-frames:
			total += n
		case <-timeout:
			t.Fatalf("timed out, received %d audio bytes", total)
		}
	}
	select {
	case <-finalized:
	case <-timeout:
		t.Fatal("finalize was never sent")
	}
}
