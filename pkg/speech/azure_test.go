package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// speechServer fakes the recognition endpoint: it upgrades the
// connection and plays back a scripted sequence of service messages.
func speechServer(t *testing.T, script []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for _, msg := range script {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func serviceMessage(path, body string) string {
	return "Path: " + path + "\r\nContent-Type: application/json\r\n\r\n" + body
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestAzureRecognizer(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		if _, err := NewAzureRecognizer(AzureConfig{Region: "centralindia"}); !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
		if _, err := NewAzureRecognizer(AzureConfig{APIKey: "key"}); !errors.Is(err, ErrNoRegion) {
			t.Errorf("expected ErrNoRegion, got %v", err)
		}
	})

	t.Run("emits hypotheses and phrases", func(t *testing.T) {
		srv := speechServer(t, []string{
			serviceMessage("speech.hypothesis", `{"Text":"ek"}`),
			serviceMessage("speech.hypothesis", `{"Text":"ek paneer"}`),
			serviceMessage("speech.phrase", `{"RecognitionStatus":"Success","DisplayText":"Ek paneer tikka."}`),
			serviceMessage("turn.end", `{}`),
		})
		defer srv.Close()

		rec, err := NewAzureRecognizer(AzureConfig{APIKey: "key", Endpoint: wsURL(srv)})
		if err != nil {
			t.Fatalf("recognizer creation failed: %v", err)
		}
		if err := rec.Start(context.Background(), "hi-IN"); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer rec.Stop()

		var got []Event
		for len(got) < 4 {
			select {
			case ev := <-rec.Events():
				got = append(got, ev)
			case <-time.After(2 * time.Second):
				t.Fatalf("expected 4 events, got %d: %+v", len(got), got)
			}
		}

		if got[0].Type != EventPartial || got[0].Text != "ek" {
			t.Errorf("unexpected first event: %+v", got[0])
		}
		if got[2].Type != EventFinal || got[2].Text != "Ek paneer tikka." {
			t.Errorf("unexpected final event: %+v", got[2])
		}
		if got[3].Type != EventStatus {
			t.Errorf("expected turn.end status, got %+v", got[3])
		}
	})

	t.Run("silence surfaces as status", func(t *testing.T) {
		srv := speechServer(t, []string{
			serviceMessage("speech.phrase", `{"RecognitionStatus":"InitialSilenceTimeout"}`),
		})
		defer srv.Close()

		rec, err := NewAzureRecognizer(AzureConfig{APIKey: "key", Endpoint: wsURL(srv)})
		if err != nil {
			t.Fatalf("recognizer creation failed: %v", err)
		}
		if err := rec.Start(context.Background(), "hi-IN"); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer rec.Stop()

		select {
		case ev := <-rec.Events():
			if ev.Type != EventStatus || ev.Detail != "InitialSilenceTimeout" {
				t.Errorf("unexpected event: %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no status event")
		}
	})

	t.Run("second start is rejected", func(t *testing.T) {
		srv := speechServer(t, nil)
		defer srv.Close()

		rec, err := NewAzureRecognizer(AzureConfig{APIKey: "key", Endpoint: wsURL(srv)})
		if err != nil {
			t.Fatalf("recognizer creation failed: %v", err)
		}
		if err := rec.Start(context.Background(), "hi-IN"); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer rec.Stop()

		if err := rec.Start(context.Background(), "hi-IN"); !errors.Is(err, ErrAlreadyListening) {
			t.Errorf("expected ErrAlreadyListening, got %v", err)
		}
	})

	t.Run("audio requires a session", func(t *testing.T) {
		rec, err := NewAzureRecognizer(AzureConfig{APIKey: "key", Region: "centralindia"})
		if err != nil {
			t.Fatalf("recognizer creation failed: %v", err)
		}
		if err := rec.WriteAudio([]byte{1, 2, 3}); !errors.Is(err, ErrNotListening) {
			t.Errorf("expected ErrNotListening, got %v", err)
		}
	})
}
