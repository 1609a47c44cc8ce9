package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

// queryLogger routes GORM's logging through the service logger. Failed
// statements log at error, statements slower than slow log at warn, and
// not-found lookups and unique violations stay quiet since callers branch on them.
type queryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow, level: gormlogger.Warn}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && q.level >= gormlogger.Error:
		if errors.Is(err, gorm.ErrRecordNotFound) || IsUniqueViolation(err, "") {
			return
		}
		q.logg.Error(q.statementContext(ctx, fc, elapsed), "query failed", err)
	case err == nil && q.slow > 0 && elapsed > q.slow && q.level >= gormlogger.Warn:
		q.logg.Warn(q.statementContext(ctx, fc, elapsed), "slow query")
	}
}

func (q *queryLogger) statementContext(ctx context.Context, fc func() (string, int64), elapsed time.Duration) context.Context {
	sql, rows := fc()
	return q.logg.WithFields(ctx, map[string]any{
		"sql":         sql,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
}
