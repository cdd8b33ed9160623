package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/prendaria/backoffice/pkg/http"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "validation_failed", "Datos inválidos")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Equal(t, "Datos inválidos", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, 401, "unauthorized", "Credenciales inválidas", "Le quedan 2 intentos antes del bloqueo.")

	assert.Equal(t, 401, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "unauthorized", resp.Error)
	assert.Equal(t, "Credenciales inválidas", resp.Message)
	assert.Equal(t, "Le quedan 2 intentos antes del bloqueo.", resp.Details)
}

func TestConvenienceWriters(t *testing.T) {
	tests := []struct {
		name     string
		write    func(*httptest.ResponseRecorder)
		wantCode int
		wantErr  string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "m") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "m") }, 401, "unauthorized"},
		{"forbidden", func(w *httptest.ResponseRecorder) { pkghttp.WriteForbidden(w, "m") }, 403, "forbidden"},
		{"not found", func(w *httptest.ResponseRecorder) { pkghttp.WriteNotFound(w, "m") }, 404, "not_found"},
		{"conflict", func(w *httptest.ResponseRecorder) { pkghttp.WriteConflict(w, "m") }, 409, "conflict"},
		{"unprocessable", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnprocessable(w, "m", "d") }, 422, "validation_failed"},
		{"too many requests", func(w *httptest.ResponseRecorder) { pkghttp.WriteTooManyRequests(w, "m") }, 429, "rate_limit_exceeded"},
		{"internal error", func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "m") }, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, w).Error)
		})
	}
}

func TestWriteUnprocessableIncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteUnprocessable(w, "La contraseña no cumple los requisitos.", "must be at least 8 characters")

	resp := decodeError(t, w)
	assert.Equal(t, "La contraseña no cumple los requisitos.", resp.Message)
	assert.Equal(t, "must be at least 8 characters", resp.Details)
}
