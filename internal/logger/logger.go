package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger for environment. Production uses JSON at info,
// anything else colored console output at debug. A non-empty level overrides
// the environment default. Every entry carries the component name.
func New(environment, component, level string) (*zap.Logger, error) {
	config := baseConfig(environment)

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(parsed)
	}

	return config.Build(
		zap.AddCaller(),
		zap.Fields(zap.String("component", component)),
	)
}

func baseConfig(environment string) zap.Config {
	var config zap.Config
	if environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config
}
