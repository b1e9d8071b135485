package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

type GormLoggerConfig struct {
	// Base defaults to the zap global.
	Base                 *zap.Logger
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
		// cache misses on reference_prices are expected
		IgnoreRecordNotFound: true,
	}
}

// GormLogger routes GORM output through zap with the caller's correlation fields.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) base(ctx context.Context) *zap.Logger {
	log := l.cfg.Base
	if log == nil {
		log = zap.L()
	}
	return WithContext(ctx, log).With(zap.String("component", "gorm"))
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cfg := l.cfg
	cfg.Level = level
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.write(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.write(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.write(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) write(ctx context.Context, needs gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < needs {
		return
	}
	if len(data) == 0 {
		l.base(ctx).Log(level, msg)
		return
	}
	l.base(ctx).Log(level, msg, zap.Any("data", data))
}

// Trace logs failed statements at error level and slow ones at warn.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	var level zapcore.Level
	switch {
	case l.cfg.Level <= gormlogger.Silent:
		return
	case err != nil && l.cfg.Level >= gormlogger.Error && !l.ignorable(err):
		level = zapcore.ErrorLevel
	case l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		level, err = zapcore.WarnLevel, nil
	case l.cfg.Level >= gormlogger.Info:
		level, err = zapcore.DebugLevel, nil
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operationFromSQL(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.base(ctx).Log(level, "gorm.query", fields...)
}

func (l *GormLogger) ignorable(err error) bool {
	return l.cfg.IgnoreRecordNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)
}

// ParamsFilter drops bound values so prices and product refs stay out of logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func operationFromSQL(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch token = strings.Trim(token, "();"); token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return token
		}
	}
	return "UNKNOWN"
}

var _ gormlogger.Interface = (*GormLogger)(nil)
