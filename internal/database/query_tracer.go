package database

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// QueryTracerConfig sets the thresholds for slow-query logging.
type QueryTracerConfig struct {
	// SlowThreshold is the duration above which a query is logged at WARN.
	SlowThreshold time.Duration
	// VerySlowThreshold is the duration above which a query is logged at ERROR.
	VerySlowThreshold time.Duration
	// LogAll additionally logs every query at DEBUG.
	LogAll bool
}

// DefaultQueryTracerConfig returns the thresholds used in production.
func DefaultQueryTracerConfig() QueryTracerConfig {
	return QueryTracerConfig{
		SlowThreshold:     100 * time.Millisecond,
		VerySlowThreshold: 500 * time.Millisecond,
	}
}

// QueryStats is a point-in-time snapshot of query activity.
type QueryStats struct {
	Total           int64
	Slow            int64
	VerySlow        int64
	Failed          int64
	AvgDuration     time.Duration
	SlowestQuery    string
	SlowestDuration time.Duration
}

// QueryTracer implements pgx.QueryTracer. Attached to the pool config, it
// logs slow and failed queries and keeps aggregate statistics.
type QueryTracer struct {
	cfg    QueryTracerConfig
	logger *zap.Logger

	mu            sync.Mutex
	total         int64
	slow          int64
	verySlow      int64
	failed        int64
	totalDuration time.Duration
	slowestSQL    string
	slowest       time.Duration
}

// NewQueryTracer creates a query tracer.
func NewQueryTracer(cfg QueryTracerConfig, logger *zap.Logger) *QueryTracer {
	return &QueryTracer{
		cfg:    cfg,
		logger: logger.Named("query"),
	}
}

type queryTraceData struct {
	startedAt time.Time
	sql       string
}

type traceCtxKey struct{}

// TraceQueryStart records the query start time.
func (qt *QueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, &queryTraceData{
		startedAt: time.Now(),
		sql:       data.SQL,
	})
}

// TraceQueryEnd classifies the finished query and updates the statistics.
func (qt *QueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, ok := ctx.Value(traceCtxKey{}).(*queryTraceData)
	if !ok {
		return
	}
	duration := time.Since(trace.startedAt)

	qt.mu.Lock()
	qt.total++
	qt.totalDuration += duration
	if duration > qt.slowest {
		qt.slowest = duration
		qt.slowestSQL = truncateSQL(trace.sql, 200)
	}
	if data.Err != nil {
		qt.failed++
	}
	if duration >= qt.cfg.VerySlowThreshold {
		qt.verySlow++
		qt.slow++
	} else if duration >= qt.cfg.SlowThreshold {
		qt.slow++
	}
	qt.mu.Unlock()

	switch {
	case data.Err != nil:
		qt.logger.Error("query failed",
			zap.String("sql", truncateSQL(trace.sql, 500)),
			zap.Duration("duration", duration),
			zap.Error(data.Err),
		)
	case duration >= qt.cfg.VerySlowThreshold:
		qt.logger.Error("very slow query",
			zap.String("sql", truncateSQL(trace.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", qt.cfg.VerySlowThreshold),
		)
	case duration >= qt.cfg.SlowThreshold:
		qt.logger.Warn("slow query",
			zap.String("sql", truncateSQL(trace.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", qt.cfg.SlowThreshold),
		)
	case qt.cfg.LogAll:
		qt.logger.Debug("query executed",
			zap.String("sql", truncateSQL(trace.sql, 200)),
			zap.Duration("duration", duration),
		)
	}
}

// Stats returns a snapshot of the accumulated statistics.
func (qt *QueryTracer) Stats() QueryStats {
	qt.mu.Lock()
	defer qt.mu.Unlock()

	stats := QueryStats{
		Total:           qt.total,
		Slow:            qt.slow,
		VerySlow:        qt.verySlow,
		Failed:          qt.failed,
		SlowestQuery:    qt.slowestSQL,
		SlowestDuration: qt.slowest,
	}
	if qt.total > 0 {
		stats.AvgDuration = qt.totalDuration / time.Duration(qt.total)
	}
	return stats
}

// LogStats logs the accumulated statistics, typically at shutdown.
func (qt *QueryTracer) LogStats() {
	stats := qt.Stats()
	qt.logger.Info("query statistics",
		zap.Int64("total", stats.Total),
		zap.Int64("slow", stats.Slow),
		zap.Int64("very_slow", stats.VerySlow),
		zap.Int64("failed", stats.Failed),
		zap.Duration("avg_duration", stats.AvgDuration),
		zap.String("slowest_query", stats.SlowestQuery),
		zap.Duration("slowest_duration", stats.SlowestDuration),
	)
}

func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen-3] + "..."
}
