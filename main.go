package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"diarscribe/align"
	"diarscribe/config"
	"diarscribe/pyannote"
	"diarscribe/remote"
	"diarscribe/speeches"
	"diarscribe/whisperx"
)

var (
	version = "dev"

	cfgPath string
	cfg     = config.Default()
)

var rootCmd = &cobra.Command{
	Use:           "diarscribe",
	Short:         "Speaker-attributed transcription of audio recordings",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = c
		return setupLogging(c.Log)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("diarscribe version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func setupLogging(c config.Log) error {
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

func assembler(c *config.Root) align.Assembler {
	return align.Assembler{Merger: align.Merger{
		MaxGap:   c.Merge.MaxGapSeconds,
		MaxWords: c.Merge.MaxWords,
	}}
}

func newEngines(c *config.Root) speeches.Engines {
	var e speeches.Engines

	switch c.ASR.Backend {
	case config.BackendHTTP:
		e.Transcriber = remote.Transcriber{
			HTTP: remote.NewHTTP(config.DurSeconds(c.ASR.TimeoutSeconds)),
			URL:  c.ASR.URL,
		}
	default:
		e.Transcriber = whisperx.WhisperxTranscriber{
			Command:     c.ASR.Command,
			Model:       c.ASR.Model,
			Language:    c.ASR.Language,
			Device:      c.ASR.Device,
			Granularity: c.ASR.Granularity,
		}
	}

	switch c.Diarization.Backend {
	case config.BackendHTTP:
		e.Diarizer = remote.Diarizer{
			HTTP: remote.NewHTTP(config.DurSeconds(c.Diarization.TimeoutSeconds)),
			URL:  c.Diarization.URL,
		}
	default:
		e.Diarizer = pyannote.Diarizer{
			Command: c.Diarization.Command,
			Model:   c.Diarization.Model,
			HFToken: c.Diarization.HFToken,
		}
	}

	return e
}

// newService opens the store and wires the engines. The returned func
// closes the store.
func newService(c *config.Root) (transcriptService, func() error, error) {
	db, err := speeches.OpenSQLite(c.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	s := speeches.NewService(speeches.NewSQLiteRepo(db), newEngines(c), assembler(c))
	return s, db.Close, nil
}
