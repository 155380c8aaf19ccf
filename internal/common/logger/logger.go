package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
)

// Grep labels attached to startup log lines
const (
	LabelInitRedis  = "INIT_REDIS"
	LabelInitMongo  = "INIT_MONGO"
	LabelInitEvents = "INIT_EVENTS"
	LabelUserAgent  = "USER_AGENT"
)

// Label returns a field that makes related log lines easy to grep for.
func Label(label string) zap.Field {
	return zap.String("label", label)
}

// DynamicLogger wraps zap.Logger with levels that can be switched at runtime.
// Startup and shutdown are always logged at INFO or lower, whatever the
// configured level is.
type DynamicLogger struct {
	*zap.Logger
	levels           []*zap.AtomicLevel
	configuredLevels []zapcore.Level
}

// SwitchToConfiguredLevel restores the configured level of every output.
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	for i, level := range dl.levels {
		level.SetLevel(dl.configuredLevels[i])
	}
}

// EnsureInfoLevelForShutdown lowers every output above INFO to INFO.
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	for _, level := range dl.levels {
		if level.Level() > zap.InfoLevel {
			level.SetLevel(zap.InfoLevel)
			changed = true
		}
	}
	if changed {
		dl.Info("Switched to INFO level for shutdown visibility")
	}
}

// NewLogger builds a logger writing to every enabled output of config.
func NewLogger(config configtypes.LogConfig) (*DynamicLogger, error) {
	return newLogger(config, false)
}

// NewLoggerWithStartupOverride builds a logger that starts at INFO when the
// configured level is higher. Call SwitchToConfiguredLevel once startup is done.
func NewLoggerWithStartupOverride(config configtypes.LogConfig) (*DynamicLogger, error) {
	return newLogger(config, true)
}

func newLogger(config configtypes.LogConfig, startupOverride bool) (*DynamicLogger, error) {
	globalLevel := parseLogLevel(config.Level)
	dl := &DynamicLogger{}
	var cores []zapcore.Core

	addCore := func(encoder zapcore.Encoder, writer zapcore.WriteSyncer, configured zapcore.Level) {
		start := configured
		if startupOverride && start > zap.InfoLevel {
			start = zap.InfoLevel
		}
		level := zap.NewAtomicLevelAt(start)
		dl.levels = append(dl.levels, &level)
		dl.configuredLevels = append(dl.configuredLevels, configured)
		cores = append(cores, zapcore.NewCore(encoder, writer, level))
	}

	if config.Console.Enabled {
		addCore(
			createEncoder(config.Console.Format),
			zapcore.Lock(os.Stdout),
			resolveLogLevel(config.Console.Level, globalLevel),
		)
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("file.path must be specified when file logging is enabled")
		}
		addCore(
			createEncoder(config.File.Format),
			createFileWriter(config.File.Path, config.File.Rotation),
			resolveLogLevel(config.File.Level, globalLevel),
		)
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	if config.Mail.Enabled {
		mailCore, err := NewMailCore(config.Mail, nil)
		if err != nil {
			return nil, err
		}
		cores = append(cores, mailCore)
	}

	dl.Logger = zap.New(zapcore.NewTee(cores...))
	return dl, nil
}

// parseLogLevel converts string level to zapcore.Level
func parseLogLevel(level string) zapcore.Level {
	switch level {
	case configtypes.LogLevelDebug:
		return zap.DebugLevel
	case configtypes.LogLevelInfo:
		return zap.InfoLevel
	case configtypes.LogLevelWarn:
		return zap.WarnLevel
	case configtypes.LogLevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func resolveLogLevel(outputLevel string, globalLevel zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return globalLevel
}

func createEncoder(format string) zapcore.Encoder {
	if format == configtypes.LogFormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == configtypes.LogFormatText {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func createFileWriter(path string, rotation configtypes.RotationConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotation.MaxSize,
		MaxAge:     rotation.MaxAge,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	})
}

// NewDefaultLogger creates a debug console logger used before the
// configuration is loaded.
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(configtypes.LogConfig{
		Level: configtypes.LogLevelDebug,
		Console: configtypes.ConsoleLogConfig{
			Enabled: true,
			Format:  configtypes.LogFormatConsole,
		},
	})
}
