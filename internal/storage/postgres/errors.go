package postgres

import (
	"errors"

	"github.com/lib/pq"

	"news_ingest/internal/domain"
)

const (
	uniqueViolation = pq.ErrorCode("23505")

	articlesExternalIDKey = "articles_external_id_key"
)

// violatedConstraint reports the constraint behind a Postgres unique violation.
func violatedConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// conflictError maps a unique violation on articles to the matching domain error.
func conflictError(constraint string) error {
	if constraint == articlesExternalIDKey {
		return domain.ErrDuplicateArticle
	}
	return domain.ErrSlugTaken
}
