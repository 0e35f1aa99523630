package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
	return env
}

func TestOKWritesEnvelope(t *testing.T) {
	res := httptest.NewRecorder()
	OK(res, http.StatusCreated, map[string]any{"id": 7})

	require.Equal(t, http.StatusCreated, res.Code)
	require.Equal(t, "application/json", res.Header().Get("Content-Type"))

	env := decodeEnvelope(t, res)
	require.True(t, env.Success)
	require.False(t, env.Timestamp.IsZero())
}

func TestPaginatedCarriesMetadata(t *testing.T) {
	res := httptest.NewRecorder()
	Paginated(res, []string{"a", "b"}, shared.NewPagination(2, 2, 5))

	env := decodeEnvelope(t, res)
	require.True(t, env.Success)
	require.NotNil(t, env.Metadata)
	require.Equal(t, 2, env.Metadata.Page)
	require.Equal(t, 5, env.Metadata.Total)
	require.Equal(t, 3, env.Metadata.TotalPages)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","bogus":1}`))
	require.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "x", target.Name)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: quotation 3 missing", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrForbidden, http.StatusForbidden},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: qty must be positive", shared.ErrValidation), http.StatusBadRequest},
		{shared.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: invoice is PAID", shared.ErrInvalidState), http.StatusConflict},
		{errors.New("pool exhausted"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		res := httptest.NewRecorder()
		Error(res, tc.err)
		require.Equal(t, tc.status, res.Code, "error %v", tc.err)

		env := decodeEnvelope(t, res)
		require.False(t, env.Success)
		require.NotEmpty(t, env.Message)
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	res := httptest.NewRecorder()
	Error(res, errors.New("dial tcp 10.0.0.8:5432: connection refused"))

	env := decodeEnvelope(t, res)
	require.Equal(t, "internal server error", env.Message)
}

func TestFieldErrors(t *testing.T) {
	res := httptest.NewRecorder()
	FieldErrors(res, map[string]string{"email": "required"})

	require.Equal(t, http.StatusBadRequest, res.Code)
	env := decodeEnvelope(t, res)
	require.False(t, env.Success)
	require.Equal(t, "validation failed", env.Message)
}
