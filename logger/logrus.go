package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/record/utils"
)

// LogrusLogger implements Interface using logrus
type LogrusLogger struct {
	Logger *logrus.Logger
	Config
}

// NewLogrusLogger creates a new logger using logrus
func NewLogrusLogger(logger *logrus.Logger, config Config) Interface {
	return &LogrusLogger{Logger: logger, Config: config}
}

// LogMode sets the log level
func (l *LogrusLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *LogrusLogger) entry(ctx context.Context, data []interface{}) *logrus.Entry {
	entry := l.Logger.WithField("file", utils.FileWithLineNum())
	if len(data) > 0 {
		entry = entry.WithField("data", data)
	}
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

// Info logs info messages
func (l *LogrusLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.entry(ctx, data).Info(msg)
	}
}

// Warn logs warning messages
func (l *LogrusLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.entry(ctx, data).Warn(msg)
	}
}

// Error logs error messages
func (l *LogrusLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.entry(ctx, data).Error(msg)
	}
}

// Trace logs statement execution details
func (l *LogrusLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	outcome := l.classify(elapsed, err)
	if outcome == traceSkipped {
		return
	}

	sql, rows := fc()
	fields := logrus.Fields{
		"elapsed": elapsedMillis(elapsed),
		"sql":     sql,
	}
	if rows != -1 {
		fields["rows"] = rows
	}
	entry := l.entry(ctx, nil).WithFields(fields)

	switch outcome {
	case traceFailed:
		entry.WithError(err).Error("query failed")
	case traceSlow:
		entry.WithField("slow_threshold", l.SlowThreshold.String()).Warn("slow query")
	default:
		entry.Info("query executed")
	}
}

// ParamsFilter hides bound values when parameterized queries are configured
func (l *LogrusLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return l.filterParams(sql, params...)
}
