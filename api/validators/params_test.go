package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

func TestParsePageQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    PageQuery
		wantErr bool
	}{
		{"defaults", "", PageQuery{Limit: pagination.DefaultLimit}, false},
		{"explicit", "?limit=10&cursor=abc", PageQuery{Limit: 10, Cursor: "abc"}, false},
		{"max", "?limit=100", PageQuery{Limit: pagination.MaxLimit}, false},
		{"zero", "?limit=0", PageQuery{}, true},
		{"too large", "?limit=101", PageQuery{}, true},
		{"not numeric", "?limit=ten", PageQuery{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePageQuery(httptest.NewRequest(http.MethodGet, "/api/orders"+tt.query, nil))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/x", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("not-a-uuid"), "orderId")
	require.Error(t, err)

	_, err = ParseUUIDParam(withParam(" "), "orderId")
	require.Error(t, err)
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	// each Arabic letter is two bytes in UTF-8
	got := SanitizeString("  عنوان التوصيل  ", 5)
	assert.Equal(t, "عن", got)
	assert.Equal(t, "plain", SanitizeString(" plain ", 0))
	assert.Nil(t, SanitizeOptional(strPtr("   "), 10))
	assert.Equal(t, "ok", *SanitizeOptional(strPtr(" ok "), 10))
	assert.True(t, strings.HasPrefix(SanitizeString("abcdef", 3), "abc"))
}

func strPtr(s string) *string { return &s }
