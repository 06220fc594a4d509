package log

import "go.uber.org/zap"

type Options struct {
	// File receives the log output. Without it logging is disabled because
	// stdout and stderr belong to the chat display.
	File  string
	Debug bool
}

func New(opts Options) (*zap.Logger, error) {
	if opts.File == "" {
		return zap.NewNop(), nil
	}

	cfg := zap.NewProductionConfig()
	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{opts.File}
	cfg.ErrorOutputPaths = []string{opts.File}
	return cfg.Build()
}

func WithSession(logger *zap.Logger, sessionID string) *zap.Logger {
	return logger.With(zap.String("session_id", sessionID))
}
