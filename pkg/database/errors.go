package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/medinsight/pkg/errors"
)

// MapPQError converts a PostgreSQL error into an AppError.
// Returns nil when err carries no pq.Error or the code has no mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch code := string(pqErr.Code); {
	// undefined_table: the store was used before EnsureSchema ran
	case code == "42P01":
		return errors.Wrap(err, "SCHEMA_MISSING", "vector store schema is not initialised", 500)

	// connection exceptions and admin shutdown
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P03":
		return errors.UpstreamUnavailable("vector store", err)

	// data exceptions such as mismatched array dimensions
	case strings.HasPrefix(code, "22"):
		return errors.BadRequest("invalid data for vector store: " + pqErr.Message)

	default:
		return nil
	}
}
