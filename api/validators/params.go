package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

// ParseUUIDParam reads a required chi URL parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// PageQuery is the ?limit=&cursor= pair accepted by list endpoints. Cursor is
// passed through opaque; the service decodes it.
type PageQuery struct {
	Limit  int
	Cursor string
}

// ParsePageQuery defaults limit to pagination.DefaultLimit and rejects values
// outside 1..pagination.MaxLimit.
func ParsePageQuery(r *http.Request) (PageQuery, error) {
	q := r.URL.Query()
	page := PageQuery{
		Limit:  pagination.DefaultLimit,
		Cursor: strings.TrimSpace(q.Get("cursor")),
	}
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return page, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > pagination.MaxLimit {
		return PageQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and "+strconv.Itoa(pagination.MaxLimit)).
			WithDetails(map[string]any{"field": "limit", "value": raw})
	}
	page.Limit = limit
	return page, nil
}
