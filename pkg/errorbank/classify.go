package errorbank

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Classification is the transport-facing identity of a fault kind.
type Classification struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
}

var classifications = map[Kind]Classification{
	KindBadRequest:          {Code: "BAD_REQUEST", Status: http.StatusBadRequest, Message: "The request could not be understood."},
	KindConflict:            {Code: "CONFLICT", Status: http.StatusConflict, Message: "The request conflicts with the current state of the resource."},
	KindNotFound:            {Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "The requested resource was not found."},
	KindUnprocessableEntity: {Code: "UNPROCESSABLE_ENTITY", Status: http.StatusUnprocessableEntity, Message: "The request cannot be applied in the current state."},
	KindValidation:          {Code: "VALIDATION_ERROR", Status: http.StatusUnprocessableEntity, Message: "The given data was invalid."},
	KindUnauthenticated:     {Code: "UNAUTHENTICATED", Status: http.StatusUnauthorized, Message: "Authentication is required."},
	KindUnauthorized:        {Code: "UNAUTHORIZED", Status: http.StatusForbidden, Message: "You are not allowed to perform this action."},
	KindRateLimited:         {Code: "RATE_LIMITED", Status: http.StatusTooManyRequests, Message: "Too many requests. Please slow down."},
	KindStorage:             {Code: "DATABASE_ERROR", Status: http.StatusInternalServerError, Message: "A database error occurred."},
	KindInternal:            {Code: "INTERNAL_ERROR", Status: http.StatusInternalServerError, Message: "An unexpected error occurred."},
}

func lookup(kind Kind) Classification {
	c, ok := classifications[kind]
	if !ok {
		c = classifications[KindInternal]
		kind = KindInternal
	}
	c.Kind = kind
	return c
}

// Classify maps any error onto its code, HTTP status and user-facing message.
func Classify(err error) Classification {
	if err == nil {
		return lookup(KindInternal)
	}
	return lookup(From(err).Kind())
}

// KindForStatus maps an HTTP status produced outside the application onto a fault kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindInternal
	}
}

// SQLCode extracts the native error code reported by the database driver.
func SQLCode(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("%d", myErr.Number)
	}
	return ""
}

func fromForeign(err error) *AppError {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("record not found", WithCause(err))
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return Validation("validation failed", FieldErrors(verrs), WithCause(err))
	}

	if SQLCode(err) != "" {
		return Storage("database query failed", WithCause(err))
	}
	return nil
}

// FieldErrors flattens validator errors into a field -> message map.
func FieldErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if name != "" {
			name = strings.ToLower(name[:1]) + name[1:]
		}
		switch fe.Tag() {
		case "required":
			fields[name] = fmt.Sprintf("%s is required", name)
		case "min", "gte", "gt":
			fields[name] = fmt.Sprintf("%s must be at least %s", name, fe.Param())
		case "max", "lte", "lt":
			fields[name] = fmt.Sprintf("%s must be at most %s", name, fe.Param())
		case "oneof":
			fields[name] = fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
		default:
			fields[name] = fmt.Sprintf("%s is invalid", name)
		}
	}
	return fields
}
