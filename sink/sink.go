// Package sink provides implementations of mirror.Sink.
package sink

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bobg/mirror"
)

var _ mirror.Sink = (*zap.SugaredLogger)(nil)

// Config says where and how to log.
type Config struct {
	// Dir is the directory for the daily log file.
	// If empty, logging goes to stderr only.
	Dir string

	// Level is one of debug, info, warn, error.
	// The default is info.
	Level string

	// Format is "console" (the default) or "json".
	Format string

	// Stderr controls whether records are also written to stderr
	// when Dir is set.
	Stderr bool
}

// FileName is the log file used in dir for records written on day t.
func FileName(dir string, t time.Time) string {
	return filepath.Join(dir, "Log-"+t.Format("02.01.2006"))
}

// New builds a leveled logger writing to stderr and/or a daily log file under conf.Dir.
// Callers should call Sync on the result before exiting.
func New(conf Config) (*zap.SugaredLogger, error) {
	var level zapcore.Level
	if conf.Level != "" {
		if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
			return nil, errors.Wrapf(err, "parsing log level %s", conf.Level)
		}
	}

	var zconf zap.Config
	switch conf.Format {
	case "", "console":
		zconf = zap.NewDevelopmentConfig()
		zconf.Development = false
		zconf.DisableStacktrace = true
	case "json":
		zconf = zap.NewProductionConfig()
		zconf.Sampling = nil
	default:
		return nil, errors.Errorf("unknown log format %s", conf.Format)
	}
	zconf.Level = zap.NewAtomicLevelAt(level)

	zconf.OutputPaths = nil
	if conf.Dir == "" || conf.Stderr {
		zconf.OutputPaths = append(zconf.OutputPaths, "stderr")
	}
	if conf.Dir != "" {
		zconf.OutputPaths = append(zconf.OutputPaths, FileName(conf.Dir, time.Now()))
	}
	zconf.ErrorOutputPaths = []string{"stderr"}

	logger, err := zconf.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger.Sugar(), nil
}
