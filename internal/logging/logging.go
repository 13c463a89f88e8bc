// Package logging builds the process-wide zap logger.
package logging

import "go.uber.org/zap"

// New returns a logger tuned for the given environment: JSON output at
// info level for "production"/"prod", console output at debug level for
// everything else.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production", "prod":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
