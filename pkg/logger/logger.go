package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool   `split_words:"true" default:"false"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	File         string `split_words:"true"`
}

var DefaultConfig = &Config{
	Debug:        false,
	PrettyFormat: false,
}

func safe(opts ...Config) *Config {
	if len(opts) == 0 {
		return DefaultConfig
	}
	return &opts[0]
}

// Init configures the global logger. The interactive CLI writes its own
// output to stdout, so log records go to stderr and, when File is set, to
// that file as JSON as well. The returned closer releases the file.
func Init(opts ...Config) (io.Closer, error) {
	conf := safe(opts...)

	var console io.Writer = os.Stderr
	if conf.PrettyFormat {
		console = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
		})
	}

	var closer io.Closer = nopCloser{}
	out := console
	if path := strings.TrimSpace(conf.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	log.Logger = New(out, conf.Debug)
	return closer, nil
}

// New builds a logger with the same level and annotations Init applies.
func New(w io.Writer, debug bool) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger.With().Caller().Stack().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
