package logger

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Config controls the process-wide logger
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var base = logrus.New()

// Init configures level and output format of the base logger
func Init(cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)
	base.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Logger returns an entry carrying the fields stored on ctx
func Logger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if fields, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
			return base.WithFields(fields)
		}
	}
	return logrus.NewEntry(base)
}

// WithFields returns a context whose logger includes the given fields
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	merged := logrus.Fields{}
	if existing, ok := ctx.Value(ctxKey{}).(logrus.Fields); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

// WithRequestID tags every log line of a request
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithFields(ctx, logrus.Fields{"request_id": requestID})
}
