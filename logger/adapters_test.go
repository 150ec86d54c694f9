package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type adapterCase struct {
	name  string
	build func(buf *bytes.Buffer, config Config) Interface
}

func adapterCases() []adapterCase {
	return []adapterCase{
		{"logrus", func(buf *bytes.Buffer, config Config) Interface {
			l := logrus.New()
			l.SetOutput(buf)
			l.SetFormatter(&logrus.JSONFormatter{})
			l.SetLevel(logrus.DebugLevel)
			return NewLogrusLogger(l, config)
		}},
		{"zap", func(buf *bytes.Buffer, config Config) Interface {
			core := zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(buf),
				zapcore.DebugLevel,
			)
			return NewZapLogger(zap.New(core), config)
		}},
		{"zerolog", func(buf *bytes.Buffer, config Config) Interface {
			return NewZerologLogger(zerolog.New(buf), config)
		}},
		{"slog", func(buf *bytes.Buffer, config Config) Interface {
			handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			return NewSlogLogger(slog.New(handler), config)
		}},
	}
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestAdaptersLogMode(t *testing.T) {
	for _, tc := range adapterCases() {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := tc.build(&buf, Config{LogLevel: Error})

			logger.Info(context.Background(), "hidden")
			assert.Empty(t, buf.String())

			logger.LogMode(Info).Info(context.Background(), "shown", "key", "value")
			assert.Contains(t, buf.String(), "shown")
			assert.Contains(t, buf.String(), "value")

			buf.Reset()
			logger.Info(context.Background(), "still hidden")
			assert.Empty(t, buf.String(), "LogMode must not change the receiver")
		})
	}
}

func TestAdaptersTrace(t *testing.T) {
	ctx := context.Background()

	for _, tc := range adapterCases() {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := tc.build(&buf, Config{LogLevel: Info, SlowThreshold: 100 * time.Millisecond})

			logger.Trace(ctx, time.Now(), func() (string, int64) {
				return "select * from users where id = ?", 5
			}, nil)
			assert.Contains(t, buf.String(), "query executed")
			assert.Contains(t, buf.String(), "select * from users where id = ?")
			assert.Contains(t, buf.String(), "elapsed")

			buf.Reset()
			logger.Trace(ctx, time.Now().Add(-150*time.Millisecond), func() (string, int64) {
				return "select * from large_table", 1000
			}, nil)
			assert.Contains(t, buf.String(), "slow query")
			assert.Contains(t, buf.String(), "slow_threshold")

			buf.Reset()
			logger.Trace(ctx, time.Now(), func() (string, int64) {
				return "select * from non_existent_table", 0
			}, assert.AnError)
			assert.Contains(t, buf.String(), "query failed")
			assert.Contains(t, buf.String(), assert.AnError.Error())
		})
	}
}

func TestAdaptersIgnoreRecordNotFound(t *testing.T) {
	for _, tc := range adapterCases() {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := tc.build(&buf, Config{LogLevel: Error, IgnoreRecordNotFoundError: true})

			logger.Trace(context.Background(), time.Now(), func() (string, int64) {
				return "select * from empty_table", 0
			}, fmt.Errorf("first: %w", ErrRecordNotFound))
			assert.Empty(t, buf.String())
		})
	}
}

func TestAdaptersSilent(t *testing.T) {
	ctx := context.Background()
	for _, tc := range adapterCases() {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := tc.build(&buf, Config{LogLevel: Silent})

			logger.Info(ctx, "not logged")
			logger.Warn(ctx, "not logged")
			logger.Error(ctx, "not logged")
			logger.Trace(ctx, time.Now(), func() (string, int64) { return "select 1", 1 }, assert.AnError)
			assert.Empty(t, buf.String())
		})
	}
}

func TestZapTraceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := adapterCases()[1].build(&buf, Config{LogLevel: Info})

	logger.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "update users set name = ?", 3
	}, nil)

	entry := lastLine(t, &buf)
	assert.Equal(t, "update users set name = ?", entry["sql"])
	assert.EqualValues(t, 3, entry["rows"])
	assert.Contains(t, entry["file"], "adapters_test.go")
}

func TestZerologTraceWithoutRows(t *testing.T) {
	var buf bytes.Buffer
	logger := adapterCases()[2].build(&buf, Config{LogLevel: Info})

	logger.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "delete from sessions", -1
	}, nil)

	entry := lastLine(t, &buf)
	assert.Equal(t, "delete from sessions", entry["sql"])
	_, ok := entry["rows"]
	assert.False(t, ok)
}

func TestSlogSource(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{AddSource: true})
	logger := NewSlogLogger(slog.New(handler), Config{LogLevel: Info})

	logger.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "select count(*) from users", 0
	}, nil)

	assert.NotContains(t, buf.String(), "logger/slog.go")
	assert.Contains(t, buf.String(), "logger/adapters_test.go")
}

func TestLevelConversions(t *testing.T) {
	tests := []struct {
		level   LogLevel
		zap     zapcore.Level
		zerolog zerolog.Level
	}{
		{Silent, zapcore.DPanicLevel, zerolog.Disabled},
		{Error, zapcore.ErrorLevel, zerolog.ErrorLevel},
		{Warn, zapcore.WarnLevel, zerolog.WarnLevel},
		{Info, zapcore.InfoLevel, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.zap, ZapLevel(tt.level))
			assert.Equal(t, tt.zerolog, ZerologLevel(tt.level))
		})
	}
}

func TestNewWithConfigConstructors(t *testing.T) {
	config := Config{LogLevel: Info, SlowThreshold: 100 * time.Millisecond}

	zapLogger := NewZapLoggerWithConfig(config, zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	})
	require.NotNil(t, zapLogger)
	assert.Equal(t, 100*time.Millisecond, zapLogger.(*ZapLogger).SlowThreshold)

	var buf bytes.Buffer
	zl := NewZerologLoggerWithConfig(config, zerolog.New(&buf).With())
	zl.Info(context.Background(), "configured")
	assert.Contains(t, buf.String(), "configured")
	assert.Equal(t, Info, zl.(*ZerologLogger).LogLevel)
}
