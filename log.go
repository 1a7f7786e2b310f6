package dieselshare

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogFunc is the diagnostic sink supplied by an embedding host.
type LogFunc func(msg string)

// NewLogger builds the logger shared by every component. Messages go to the
// console and log file selected by cfg and, when sink is not nil, to the host.
func NewLogger(cfg LoggingConfig, sink LogFunc) (*logrus.Logger, error) {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stderr)
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	if len(writers) > 0 {
		log.SetOutput(io.MultiWriter(writers...))
	} else {
		log.SetOutput(io.Discard)
	}

	if sink != nil {
		log.AddHook(&sinkHook{sink: sink})
	}
	return log, nil
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Component returns an entry tagged with the component name, tolerating a nil logger.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	if log == nil {
		log = DiscardLogger()
	}
	return log.WithField("component", name)
}

type sinkHook struct {
	sink LogFunc
}

func (h *sinkHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *sinkHook) Fire(e *logrus.Entry) error {
	msg := e.Message
	if c, ok := e.Data["component"]; ok {
		if s, ok := c.(string); ok && s != "" {
			msg = s + ": " + msg
		}
	}
	h.sink(strings.ToUpper(e.Level.String()) + " " + msg)
	return nil
}
