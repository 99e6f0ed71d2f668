package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// QueryOptions tunes how statements issued through gorm are logged.
type QueryOptions struct {
	Level     gormlogger.LogLevel
	SlowQuery time.Duration
	// ShowNotFound reports gorm.ErrRecordNotFound as a failed statement.
	// Repositories treat a miss as a normal result, so it stays off unless asked.
	ShowNotFound bool
}

// ParseQueryLevel maps DATABASE_LOG_LEVEL values onto gorm levels. Unknown
// values fall back to warn.
func ParseQueryLevel(value string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent", "off", "none":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug", "all":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// QueryLogger writes gorm statements through zap, tagged with the request,
// workspace and actor carried on the statement context. Bound parameters are
// never logged because invite tokens and emails travel through them.
type QueryLogger struct {
	base *zap.Logger
	opts QueryOptions
}

func NewQueryLogger(base *zap.Logger, opts QueryOptions) *QueryLogger {
	if base == nil {
		base = zap.L()
	}
	return &QueryLogger{base: base, opts: opts}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.opts.Level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, need gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.opts.Level < need {
		return
	}
	if len(data) > 0 {
		msg = fmt.Sprintf(msg, data...)
	}
	if ce := WithContext(ctx, l.base).Check(level, msg); ce != nil {
		ce.Write(zap.String("component", "gorm"))
	}
}

func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.opts.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	level, ok := l.traceLevel(elapsed, err)
	if !ok {
		return
	}
	ce := WithContext(ctx, l.base).Check(level, "sql")
	if ce == nil {
		return
	}

	stmt, rows := fc()
	stmt = strings.TrimSpace(stmt)
	verb, table := describeStatement(stmt)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("verb", verb),
		zap.String("statement", stmt),
		zap.Duration("elapsed", elapsed),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	switch {
	case err != nil:
		fields = append(fields, zap.Error(err))
	case level == zapcore.WarnLevel:
		fields = append(fields, zap.Duration("slow_threshold", l.opts.SlowQuery))
	}
	ce.Write(fields...)
}

func (l *QueryLogger) traceLevel(elapsed time.Duration, err error) (zapcore.Level, bool) {
	failed := err != nil && (l.opts.ShowNotFound || !errors.Is(err, gormlogger.ErrRecordNotFound))
	switch {
	case failed:
		return zapcore.ErrorLevel, l.opts.Level >= gormlogger.Error
	case l.opts.SlowQuery > 0 && elapsed > l.opts.SlowQuery:
		return zapcore.WarnLevel, l.opts.Level >= gormlogger.Warn
	default:
		return zapcore.DebugLevel, l.opts.Level >= gormlogger.Info
	}
}

// ParamsFilter drops bound values before gorm renders the statement.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

// describeStatement returns the leading DML verb and the first table it
// touches, e.g. ("UPDATE", "workspace_members").
func describeStatement(stmt string) (string, string) {
	tokens := strings.Fields(stmt)
	verb, table := "OTHER", ""
	for i, tok := range tokens {
		word := strings.ToUpper(strings.Trim(tok, "();,"))
		switch word {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if verb != "OTHER" {
				continue
			}
			verb = word
			if word == "UPDATE" {
				table = tableAt(tokens, i+1)
			}
		case "FROM", "INTO":
			if table == "" && verb != "OTHER" {
				table = tableAt(tokens, i+1)
			}
		}
		if verb != "OTHER" && table != "" {
			break
		}
	}
	return verb, table
}

func tableAt(tokens []string, i int) string {
	if i >= len(tokens) {
		return ""
	}
	return strings.Trim(tokens[i], "\"`();,")
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
