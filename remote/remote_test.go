package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarscribe/align"
)

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reunion.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))
	return path
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /transcribe", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		body, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF", string(body))
		assert.Equal(t, "reunion.wav", hdr.Filename)
		io.WriteString(w, `{"language": "fr", "chunks": [
			{"timestamp": [0.0, 0.5], "text": " bonjour"},
			{"timestamp": [0.5, null], "text": " comment"}
		]}`)
	})
	mux.HandleFunc("POST /diarize", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"turns": [{"start": 0.0, "end": 1.0, "speaker": "SPEAKER_00"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTranscriber(t *testing.T) {
	srv := newServer(t)
	tr := Transcriber{HTTP: NewHTTP(0), URL: srv.URL}

	got, err := tr.Transcribe(context.Background(), audioFile(t))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, " bonjour", got[0].Text)
	_, ok := got[1].Interval()
	assert.False(t, ok)
}

func TestDiarizer(t *testing.T) {
	srv := newServer(t)
	d := Diarizer{HTTP: NewHTTP(0), URL: srv.URL}

	got, err := d.Diarize(context.Background(), audioFile(t))
	require.NoError(t, err)
	assert.Equal(t, []align.DiarizationTurn{
		{Interval: align.TimeInterval{Start: 0, End: 1}, Speaker: "SPEAKER_00"},
	}, got)
}

func TestHTTP_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP(0).ASR(context.Background(), srv.URL, audioFile(t))
	assert.ErrorContains(t, err, "503")
	assert.ErrorContains(t, err, "model not loaded")
}

func TestHTTP_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{")
	}))
	defer srv.Close()

	_, err := NewHTTP(0).Diarize(context.Background(), srv.URL, audioFile(t))
	assert.ErrorContains(t, err, "decode")
}

func TestHTTP_MissingFile(t *testing.T) {
	_, err := NewHTTP(0).ASR(context.Background(), "http://127.0.0.1:0", filepath.Join(t.TempDir(), "none.wav"))
	assert.Error(t, err)
}
