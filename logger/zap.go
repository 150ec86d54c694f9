package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/record/utils"
)

// ZapLogger implements Interface using zap
type ZapLogger struct {
	Logger *zap.Logger
	Config
}

// NewZapLogger creates a new logger using zap
func NewZapLogger(logger *zap.Logger, config Config) Interface {
	return &ZapLogger{Logger: logger, Config: config}
}

// NewZapLoggerWithConfig builds a zap logger from zapConfig, production config by default
func NewZapLoggerWithConfig(config Config, zapConfig ...zap.Config) Interface {
	var zapCfg zap.Config
	if len(zapConfig) > 0 {
		zapCfg = zapConfig[0]
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(ZapLevel(config.LogLevel))
	}

	logger, err := zapCfg.Build()
	if err != nil {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(ZapLevel(config.LogLevel))
		logger, _ = zapCfg.Build()
	}

	return NewZapLogger(logger, config)
}

// LogMode sets the log level
func (l *ZapLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func zapFields(data []interface{}) []zap.Field {
	fields := []zap.Field{zap.String("file", utils.FileWithLineNum())}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	return fields
}

// Info logs info messages
func (l *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Logger.Info(msg, zapFields(data)...)
	}
}

// Warn logs warning messages
func (l *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Logger.Warn(msg, zapFields(data)...)
	}
}

// Error logs error messages
func (l *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Logger.Error(msg, zapFields(data)...)
	}
}

// Trace logs statement execution details
func (l *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	outcome := l.classify(elapsed, err)
	if outcome == traceSkipped {
		return
	}

	sql, rows := fc()
	fields := append(zapFields(nil),
		zap.String("elapsed", elapsedMillis(elapsed)),
		zap.String("sql", sql),
	)
	if rows != -1 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	switch outcome {
	case traceFailed:
		l.Logger.Error("query failed", append(fields, zap.Error(err))...)
	case traceSlow:
		l.Logger.Warn("slow query", append(fields, zap.Duration("slow_threshold", l.SlowThreshold))...)
	default:
		l.Logger.Info("query executed", fields...)
	}
}

// ParamsFilter hides bound values when parameterized queries are configured
func (l *ZapLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return l.filterParams(sql, params...)
}

// ZapLevel converts LogLevel to zapcore.Level
func ZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case Silent:
		// nothing below DPanic is written
		return zapcore.DPanicLevel
	case Error:
		return zapcore.ErrorLevel
	case Warn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
