package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"diarscribe/align"
	"diarscribe/config"
	"diarscribe/speeches"
)

var supportedFormats = map[string]bool{
	".wav": true,
	".mp3": true,
	".m4a": true,
}

type (
	transcriptService interface {
		Transcribe(ctx context.Context, name string, filePath string) (speeches.Transcript, error)
		StartTranscribe(ctx context.Context, name string, filePath string, release func()) (speeches.Speech, error)
		Wait()
		GetTranscript(ctx context.Context, id int64) (speeches.Transcript, error)
		ListSpeeches(ctx context.Context) ([]speeches.Speech, error)
	}

	server struct {
		svc       transcriptService
		timeout   time.Duration
		uploadDir string
	}

	transcriptionResponse struct {
		SpeechID int64 `json:"speech_id"`
		align.TranscriptionResponse
	}

	requestIDKey struct{}
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transcription API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, closeDB, err := newService(cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()
		return runServer(ctx, cfg.Server, svc)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(ctx context.Context, c config.Server, svc transcriptService) error {
	s := server{svc: svc, timeout: config.DurSeconds(c.TimeoutSeconds), uploadDir: c.UploadDir}

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", c.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown server")
	}

	log.Info("waiting for background transcriptions")
	svc.Wait()
	return nil
}

func (s server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.root)
	mux.HandleFunc("POST /api/v1/transcribe/", s.transcribe)
	mux.HandleFunc("POST /api/v1/speeches/{$}", s.startTranscribe)
	mux.HandleFunc("GET /api/v1/speeches/{$}", s.listSpeeches)
	mux.HandleFunc("GET /api/v1/speeches/{id}", s.getSpeech)
	return withRequestID(withCORS(mux))
}

func (s server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "POST audio to /api/v1/transcribe/"})
}

func (s server) transcribe(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	name, tmpPath, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(tmpPath)

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	t, err := s.svc.Transcribe(ctx, name, tmpPath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.WithError(err).Warn("transcription timed out")
			writeDetail(w, http.StatusGatewayTimeout, "Request timeout")
			return
		}
		logger.WithError(err).Error("transcription failed")
		writeDetail(w, http.StatusInternalServerError, "Transcription failed")
		return
	}

	writeJSON(w, http.StatusOK, transcriptionResponse{
		SpeechID:              t.Speech.ID,
		TranscriptionResponse: align.TranscriptionResponse{Segments: t.Segments},
	})
}

// startTranscribe queues the upload and answers before the engines run.
// The upload is removed by the service once the job no longer reads it.
func (s server) startTranscribe(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	name, tmpPath, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}

	speech, err := s.svc.StartTranscribe(r.Context(), name, tmpPath, func() {
		if err := os.Remove(tmpPath); err != nil {
			logger.WithError(err).Warn("removing upload")
		}
	})
	if err != nil {
		logger.WithError(err).Error("starting transcription")
		writeDetail(w, http.StatusInternalServerError, "Could not start transcription")
		return
	}

	status := http.StatusAccepted
	if speech.IsTranscribed {
		status = http.StatusOK
	}
	logger.WithField("speech_id", speech.ID).Info("transcription queued")
	writeJSON(w, status, speech)
}

// receiveUpload checks the multipart file and stores it in the upload dir.
// On failure the response is already written.
func (s server) receiveUpload(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing file")
		return "", "", false
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if !supportedFormats[ext] {
		writeDetail(w, http.StatusBadRequest, "File format not supported")
		return "", "", false
	}

	tmpPath, err := s.saveUpload(r, file, ext)
	if err != nil {
		requestLogger(r).WithError(err).Error("saving upload")
		writeDetail(w, http.StatusInternalServerError, "Could not store upload")
		return "", "", false
	}
	return hdr.Filename, tmpPath, true
}

func (s server) saveUpload(r *http.Request, src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.uploadDir, requestID(r)+"-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s server) listSpeeches(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ListSpeeches(r.Context())
	if err != nil {
		requestLogger(r).WithError(err).Error("listing speeches")
		writeDetail(w, http.StatusInternalServerError, "Could not list speeches")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s server) getSpeech(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid speech id")
		return
	}

	t, err := s.svc.GetTranscript(r.Context(), id)
	if errors.Is(err, speeches.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Speech not found")
		return
	}
	if err != nil {
		requestLogger(r).WithError(err).Error("getting transcript")
		writeDetail(w, http.StatusInternalServerError, "Could not load speech")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("writing response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		requestLogger(r).WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("request")
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func requestLogger(r *http.Request) *log.Entry {
	return log.WithField("request_id", requestID(r))
}
