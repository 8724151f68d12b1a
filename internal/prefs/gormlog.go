package prefs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// GormLogger routes gorm's logging through zerolog.
type GormLogger struct {
	log   zerolog.Logger
	level logger.LogLevel
}

// NewGormLogger returns a logger that reports errors and slow queries.
func NewGormLogger(l zerolog.Logger) *GormLogger {
	return &GormLogger{log: l, level: logger.Warn}
}

func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *g
	c.level = level
	return &c
}

func (g *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if g.level >= logger.Info {
		g.log.Info().Interface("data", data).Msg(msg)
	}
}

func (g *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if g.level >= logger.Warn {
		g.log.Warn().Interface("data", data).Msg(msg)
	}
}

func (g *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if g.level >= logger.Error {
		g.log.Error().Interface("data", data).Msg(msg)
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= logger.Error:
		sql, rows := fc()
		g.log.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case elapsed > slowQuery && g.level >= logger.Warn:
		sql, rows := fc()
		g.log.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	case g.level >= logger.Info:
		sql, rows := fc()
		g.log.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query")
	}
}
