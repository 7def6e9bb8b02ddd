package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/parithi/bankassist/internal/modality"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.wav")
	if err := os.WriteFile(path, []byte("RIFFfakewav"), 0o600); err != nil {
		t.Fatalf("writing audio: %v", err)
	}
	return path
}

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key")
}

func TestRecognize_Success(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		var req recognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		audio, err := base64.StdEncoding.DecodeString(req.Audio.Content)
		if err != nil {
			t.Fatalf("audio content is not base64: %v", err)
		}
		if string(audio) != "RIFFfakewav" {
			t.Errorf("audio = %q", audio)
		}
		if req.Config.LanguageCode != "en-IN" {
			t.Errorf("languageCode = %q", req.Config.LanguageCode)
		}

		w.Write([]byte(`{"results":[{"alternatives":[{"transcript":" what is my balance "}]}]}`))
	})

	got, err := c.Recognize(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "what is my balance" {
		t.Errorf("transcript = %q", got)
	}
}

func TestRecognize_NoSpeech(t *testing.T) {
	for name, body := range map[string]string{
		"no results":       `{"results":[]}`,
		"no alternatives":  `{"results":[{"alternatives":[]}]}`,
		"blank transcript": `{"results":[{"alternatives":[{"transcript":"  "}]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.Recognize(context.Background(), writeAudio(t))
			if !errors.Is(err, modality.ErrUnintelligibleAudio) {
				t.Fatalf("err = %v, want ErrUnintelligibleAudio", err)
			}
		})
	}
}

func TestRecognize_ServiceDown(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Recognize(context.Background(), writeAudio(t))
	if !errors.Is(err, modality.ErrSpeechUnavailable) {
		t.Fatalf("err = %v, want ErrSpeechUnavailable", err)
	}
}

func TestRecognize_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient(srv.URL, "")
	srv.Close()

	_, err := c.Recognize(context.Background(), writeAudio(t))
	if !errors.Is(err, modality.ErrSpeechUnavailable) {
		t.Fatalf("err = %v, want ErrSpeechUnavailable", err)
	}
}
