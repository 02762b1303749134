package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendWhisperx = "whisperx"
	BackendPyannote = "pyannote"
	BackendHTTP     = "http"
)

type Server struct {
	Addr           string `yaml:"addr"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UploadDir      string `yaml:"upload_dir"`
}

type Database struct {
	Path string `yaml:"path"`
}

type ASR struct {
	Backend        string `yaml:"backend"`
	URL            string `yaml:"url"`
	Command        string `yaml:"command"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	Device         string `yaml:"device"`
	Granularity    string `yaml:"granularity"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Diarization struct {
	Backend        string `yaml:"backend"`
	URL            string `yaml:"url"`
	Command        string `yaml:"command"`
	Model          string `yaml:"model"`
	HFToken        string `yaml:"hf_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Merge struct {
	MaxGapSeconds float64 `yaml:"max_gap_seconds"`
	MaxWords      int     `yaml:"max_words"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Root struct {
	Server      Server      `yaml:"server"`
	Database    Database    `yaml:"database"`
	ASR         ASR         `yaml:"asr"`
	Diarization Diarization `yaml:"diarization"`
	Merge       Merge       `yaml:"merge"`
	Log         Log         `yaml:"log"`
}

func Default() *Root {
	return &Root{
		Server:   Server{Addr: ":8502", TimeoutSeconds: 600},
		Database: Database{Path: "./speeches.db"},
		ASR: ASR{
			Backend:     BackendWhisperx,
			Language:    "fr",
			Granularity: "segment",
		},
		Diarization: Diarization{
			Backend: BackendPyannote,
			Command: "pyannote-rttm",
			Model:   "pyannote/speaker-diarization-3.1",
		},
		Merge: Merge{MaxGapSeconds: 0.2, MaxWords: 35},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load reads path, or the first existing default location when path is
// empty, over Default. Environment variables win over the file. No file at
// all is not an error.
func Load(path string) (*Root, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	guess := []string{path}
	if path == "" {
		guess = []string{
			"config.yaml",
			filepath.Join("config", "config.yaml"),
		}
	}

	for _, p := range guess {
		f, err := os.Open(p)
		if errors.Is(err, os.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		err = yaml.NewDecoder(f).Decode(cfg)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding config %s: %w", p, err)
		}
		break
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Root) applyEnv() {
	if v := os.Getenv("HF_TOKEN"); v != "" {
		c.Diarization.HFToken = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		c.ASR.Model = v
	}
	if v := os.Getenv("DIARIZATION_MODEL"); v != "" {
		c.Diarization.Model = v
	}
}

func (c *Root) Validate() error {
	switch c.ASR.Backend {
	case BackendWhisperx:
	case BackendHTTP:
		if c.ASR.URL == "" {
			return errors.New("asr.url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown asr backend %q", c.ASR.Backend)
	}

	switch c.Diarization.Backend {
	case BackendPyannote:
	case BackendHTTP:
		if c.Diarization.URL == "" {
			return errors.New("diarization.url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown diarization backend %q", c.Diarization.Backend)
	}

	if c.Merge.MaxWords <= 0 {
		return errors.New("merge.max_words must be positive")
	}
	return nil
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
