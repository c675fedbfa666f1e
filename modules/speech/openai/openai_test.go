package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/internal/speech"
	"gopkg.in/yaml.v3"
)

func yamlNode(t *testing.T, raw string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc.Content[0]
}

func newTestSynthesizer(t *testing.T, extra string, handler http.HandlerFunc) *Synthesizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := &Synthesizer{}
	raw := fmt.Sprintf("api_key: sk-test\nbase_url: %s/v1/\nmax_retries: 0\n%s", srv.URL, extra)
	if err := s.Configure(yamlNode(t, raw)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := s.Provision(core.NewAppContext(nil, t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return s
}

func TestModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Synthesizer{}).ModuleInfo()
	if info.ID != "speech.openai" {
		t.Errorf("ID = %s", info.ID)
	}
	if _, ok := info.New().(*Synthesizer); !ok {
		t.Errorf("New() returned %T", info.New())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     string
		wantErr string
	}{
		{name: "defaults", cfg: "api_key: k\n"},
		{name: "missing key", cfg: "voice: nova\n", wantErr: "api_key"},
		{name: "bad format", cfg: "api_key: k\nformat: ogg\n", wantErr: "format"},
		{name: "bad speed", cfg: "api_key: k\nspeed: 5\n", wantErr: "speed"},
		{name: "negative chunk", cfg: "api_key: k\nchunk_size: -1\n", wantErr: "chunk_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &Synthesizer{}
			if err := s.Configure(yamlNode(t, tt.cfg)); err != nil {
				t.Fatalf("Configure: %v", err)
			}
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSynthesize_Chunks(t *testing.T) {
	t.Parallel()

	audio := bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 2500)
	var req map[string]any
	s := newTestSynthesizer(t, "voice: nova\n", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	})

	ch, err := s.Synthesize(context.Background(), "good morning")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	var sizes []int
	var got bytes.Buffer
	for c := range ch {
		if c.Err != nil {
			t.Fatalf("chunk error: %v", c.Err)
		}
		sizes = append(sizes, len(c.Data))
		got.Write(c.Data)
	}

	if !bytes.Equal(got.Bytes(), audio) {
		t.Errorf("reassembled %d bytes, want %d", got.Len(), len(audio))
	}
	if want := []int{4096, 4096, 1808}; fmt.Sprint(sizes) != fmt.Sprint(want) {
		t.Errorf("chunk sizes = %v, want %v", sizes, want)
	}
	if req["input"] != "good morning" || req["voice"] != "nova" || req["model"] != DefaultModel || req["response_format"] != "mp3" {
		t.Errorf("request = %v", req)
	}
	if s.Format() != "mp3" {
		t.Errorf("Format() = %q", s.Format())
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, "", func(http.ResponseWriter, *http.Request) {
		t.Error("unexpected request")
	})
	if _, err := s.Synthesize(context.Background(), "  \n"); !errors.Is(err, speech.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestSynthesize_HTTPError(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})
	ch, err := s.Synthesize(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "speech.openai") {
		t.Fatalf("err = %v", err)
	}
	if ch != nil {
		t.Error("expected nil channel")
	}
}

func TestSynthesize_Collect(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, "chunk_size: 3\nformat: wav\n", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("RIFFdata"))
	})
	ch, err := s.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	data, err := speech.Collect(ch)
	if err != nil || string(data) != "RIFFdata" {
		t.Errorf("Collect = %q, %v", data, err)
	}
}
