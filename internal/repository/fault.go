// Package repository holds helpers shared by the per-domain repositories.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

// Fail records err on the span and wraps it as a storage fault that keeps the SQL text.
func Fail(span trace.Span, err error, query fmt.Stringer, msg string) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	opts := []errorbank.Option{errorbank.WithCause(err)}
	if query != nil {
		opts = append(opts, errorbank.WithQuery(query.String()))
	}
	return errorbank.Storage(msg, opts...)
}

// IsNoRows reports whether a select matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
