package logger

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/record/utils"
)

type slogLogger struct {
	Logger *slog.Logger
	Config
}

// NewSlogLogger creates a new logger writing records to logger's handler
func NewSlogLogger(logger *slog.Logger, config Config) Interface {
	return &slogLogger{Logger: logger, Config: config}
}

func (l *slogLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *slogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.log(ctx, slog.LevelInfo, msg, slog.Any("data", data))
	}
}

func (l *slogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.log(ctx, slog.LevelWarn, msg, slog.Any("data", data))
	}
}

func (l *slogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.log(ctx, slog.LevelError, msg, slog.Any("data", data))
	}
}

func (l *slogLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	outcome := l.classify(elapsed, err)
	if outcome == traceSkipped {
		return
	}

	sql, rows := fc()
	fields := []slog.Attr{
		slog.String("elapsed", elapsedMillis(elapsed)),
		slog.String("sql", sql),
	}
	if rows != -1 {
		fields = append(fields, slog.Int64("rows", rows))
	}

	level, msg := slog.LevelInfo, "query executed"
	switch outcome {
	case traceFailed:
		fields = append(fields, slog.String("error", err.Error()))
		level, msg = slog.LevelError, "query failed"
	case traceSlow:
		fields = append(fields, slog.Duration("slow_threshold", l.SlowThreshold))
		level, msg = slog.LevelWarn, "slow query"
	}
	l.log(ctx, level, msg, slog.Attr{Key: "trace", Value: slog.GroupValue(fields...)})
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}

	if !l.Logger.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now(), level, msg, utils.CallerFrame().PC)
	r.Add(args...)
	_ = l.Logger.Handler().Handle(ctx, r)
}

// ParamsFilter filter params
func (l *slogLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return l.filterParams(sql, params...)
}
