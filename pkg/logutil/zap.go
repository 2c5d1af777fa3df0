package logutil

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetDefaultZapLoggerConfig returns a new default zap logger configuration.
func GetDefaultZapLoggerConfig() zap.Config {
	return zap.Config{
		Level: zap.NewAtomicLevelAt(zap.InfoLevel),

		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},

		Encoding: "json",

		// copied from "zap.NewProductionEncoderConfig" with some updates
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},

		// Use "/dev/null" to discard all
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// New builds a logger at the given level writing to the default outputs plus logOutputs.
func New(logLevel string, logOutputs []string) (*zap.Logger, error) {
	lvl, err := ConvertToZapLevel(logLevel)
	if err != nil {
		return nil, err
	}
	lcfg := AddOutputPaths(GetDefaultZapLoggerConfig(), logOutputs, logOutputs)
	lcfg.Level = zap.NewAtomicLevelAt(lvl)
	return lcfg.Build()
}

// AddOutputPaths adds output paths to the existing output paths, resolving conflicts.
func AddOutputPaths(cfg zap.Config, outputPaths, errorOutputPaths []string) zap.Config {
	cfg.OutputPaths = mergePaths(cfg.OutputPaths, outputPaths)
	cfg.ErrorOutputPaths = mergePaths(cfg.ErrorOutputPaths, errorOutputPaths)
	return cfg
}

func mergePaths(existing, added []string) []string {
	outputs := make(map[string]struct{})
	for _, v := range existing {
		outputs[v] = struct{}{}
	}
	for _, v := range added {
		outputs[v] = struct{}{}
	}
	// "/dev/null" to discard all
	if _, ok := outputs["/dev/null"]; ok {
		return []string{"/dev/null"}
	}
	merged := make([]string, 0, len(outputs))
	for k := range outputs {
		merged = append(merged, k)
	}
	sort.Strings(merged)
	return merged
}
