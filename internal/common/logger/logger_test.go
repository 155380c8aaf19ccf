package logger

import (
	"net/smtp"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
)

func fileConfig(path, level, format string) configtypes.LogConfig {
	return configtypes.LogConfig{
		Level: level,
		File: configtypes.FileLogConfig{
			Enabled: true,
			Path:    path,
			Format:  format,
		},
	}
}

func TestNewLogger_FileJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")

	logger, err := NewLogger(fileConfig(logPath, "debug", "json"))
	require.NoError(t, err)

	logger.Info("redis pool ready", Label(LabelInitRedis), zap.Int("pool_size", 10))
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"redis pool ready"`)
	assert.Contains(t, string(content), `"label":"INIT_REDIS"`)
	assert.Contains(t, string(content), `"pool_size":10`)
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger(configtypes.LogConfig{Level: "info"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one log output")

	_, err = NewLogger(configtypes.LogConfig{File: configtypes.FileLogConfig{Enabled: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file.path must be specified")

	_, err = NewLogger(configtypes.LogConfig{
		Console: configtypes.ConsoleLogConfig{Enabled: true},
		Mail:    configtypes.MailLogConfig{Enabled: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail logging requires")
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		present []string
		absent  []string
	}{
		{"debug", []string{"debug message", "info message"}, nil},
		{"info", []string{"info message", "warn message"}, []string{"debug message"}},
		{"error", []string{"error message"}, []string{"info message", "warn message"}},
		{"bogus", []string{"info message"}, []string{"debug message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "level.log")
			logger, err := NewLogger(fileConfig(logPath, tt.level, "text"))
			require.NoError(t, err)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")
			logger.Sync()

			content, err := os.ReadFile(logPath)
			require.NoError(t, err)
			for _, s := range tt.present {
				assert.Contains(t, string(content), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, string(content), s)
			}
			assert.NotContains(t, string(content), "\x1b[")
		})
	}
}

func TestStartupOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "startup.log")

	logger, err := NewLoggerWithStartupOverride(fileConfig(logPath, "error", "json"))
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	logger.Info("starting")

	logger.SwitchToConfiguredLevel()
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	logger.Info("hidden after startup")

	logger.EnsureInfoLevelForShutdown()
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "starting")
	assert.NotContains(t, string(content), "hidden after startup")
	assert.Contains(t, string(content), "Switched to INFO level")
}

func TestMailCore_SendsErrorsOnly(t *testing.T) {
	type sent struct {
		addr string
		from string
		to   []string
		msg  string
	}
	var mails []sent
	send := func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		mails = append(mails, sent{addr, from, to, string(msg)})
		return nil
	}

	core, err := NewMailCore(configtypes.MailLogConfig{
		Host:    "mail.local:25",
		From:    "svc@example.com",
		To:      []string{"ops@example.com"},
		Subject: "service failure",
	}, send)
	require.NoError(t, err)

	log := zap.New(core).With(zap.String("srv", "LOCAL"))
	log.Info("not mailed")
	log.Warn("not mailed either")
	log.Error("flush failed", zap.String("collection", "user_events"))

	require.Len(t, mails, 1)
	assert.Equal(t, "mail.local:25", mails[0].addr)
	assert.Equal(t, []string{"ops@example.com"}, mails[0].to)
	assert.Contains(t, mails[0].msg, "Subject: service failure")
	assert.Contains(t, mails[0].msg, "flush failed")
	assert.Contains(t, mails[0].msg, "user_events")
	assert.Contains(t, mails[0].msg, "LOCAL")
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
