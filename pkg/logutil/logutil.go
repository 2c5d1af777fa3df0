// Package logutil implements zap logger helpers for train-launcher.
package logutil

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var DefaultLogLevel = "info"

// ConvertToZapLevel converts log level string to zapcore.Level.
func ConvertToZapLevel(lvl string) (zapcore.Level, error) {
	switch lvl {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	case "dpanic":
		return zap.DPanicLevel, nil
	case "panic":
		return zap.PanicLevel, nil
	case "fatal":
		return zap.FatalLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", lvl)
	}
}

// IsValidLogLevel returns true if the level is understood by ConvertToZapLevel.
func IsValidLogLevel(lvl string) bool {
	_, err := ConvertToZapLevel(lvl)
	return err == nil
}
