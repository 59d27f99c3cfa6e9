package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxTracedSQL = 300

type querySpanKey struct{}

// PGXTracer is a pgx.QueryTracer that opens a client span per statement,
// named after the SQL verb ("postgres SELECT").
type PGXTracer struct{}

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	sql := compactSQL(data.SQL)
	op := "QUERY"
	if verb, _, _ := strings.Cut(sql, " "); verb != "" {
		op = strings.ToUpper(verb)
	}
	ctx, span := otel.Tracer("db.pgx").Start(ctx, "postgres "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", op),
			attribute.String("db.query.text", sql),
			attribute.Int("db.query.args", len(data.Args)),
		),
	)
	return context.WithValue(ctx, querySpanKey{}, span)
}

func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
}

// compactSQL collapses whitespace and truncates long statements.
func compactSQL(sql string) string {
	out := strings.Join(strings.Fields(sql), " ")
	if len(out) > maxTracedSQL {
		return out[:maxTracedSQL] + "..."
	}
	return out
}
