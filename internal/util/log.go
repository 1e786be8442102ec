package util

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFromContext returns the request-scoped logger if one was attached by
// the logging middleware, falling back to the global logger otherwise.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}

	return l
}

// LogLevelFromString parses a log level, defaulting to debug on garbage
// input so a misconfigured deployment still logs.
func LogLevelFromString(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to parse log level %q, defaulting to debug", s)
		return zerolog.DebugLevel
	}

	return level
}
