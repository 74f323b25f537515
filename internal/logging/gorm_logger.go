package logging

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold marks archive queries worth a warning.
const slowQueryThreshold = 200 * time.Millisecond

// GormZapLogger routes GORM's output through zap so the interview archive
// logs into the same sinks as the rest of the application.
type GormZapLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
}

// NewGormZapLogger wraps the given zap logger at the given GORM level.
func NewGormZapLogger(log *zap.Logger, level gormlogger.LogLevel) *GormZapLogger {
	return &GormZapLogger{log: log, level: level}
}

func (l *GormZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormZapLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *GormZapLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *GormZapLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

// Trace logs one executed query. ErrRecordNotFound is not an error at this
// level; lookups for sessions that were never archived hit it routinely.
func (l *GormZapLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.log.Error("Archive query failed", append(fields, zap.Error(err))...)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		l.log.Warn("Slow archive query", fields...)
	case l.level >= gormlogger.Info:
		l.log.Debug("Archive query", fields...)
	}
}
