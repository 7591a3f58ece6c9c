package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/stretchr/testify/assert"
)

func itoa(i int) string { return strconv.Itoa(i) }

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{err: fmt.Errorf("%w: score out of range", services.ErrInvalidInput), wantCode: http.StatusBadRequest, wantErr: "invalid_input"},
		{err: fmt.Errorf("load user: %w", services.ErrNotFound), wantCode: http.StatusNotFound, wantErr: "not_found"},
		{err: services.ErrIneligibleUser, wantCode: http.StatusConflict, wantErr: "ineligible_user"},
		{err: services.ErrNoExistingLicense, wantCode: http.StatusConflict, wantErr: "no_existing_license"},
		{err: services.ErrInvalidTransition, wantCode: http.StatusConflict, wantErr: "invalid_transition"},
		{err: services.ErrAlreadyIssued, wantCode: http.StatusConflict, wantErr: "already_issued"},
		{err: services.ErrConflict, wantCode: http.StatusConflict, wantErr: "conflict"},
		{err: fmt.Errorf("x: %w: %w", services.ErrUnavailable, errors.New("dial tcp")), wantCode: http.StatusServiceUnavailable, wantErr: "unavailable"},
		{err: errors.New("anything else"), wantCode: http.StatusServiceUnavailable, wantErr: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error)
			assert.NotEmpty(t, resp.Reason)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		wantErr    string
	}{
		{name: "valid", body: `{"name":"a"}`},
		{name: "empty allowed", body: ``, allowEmpty: true},
		{name: "empty rejected", body: ``, wantErr: "request body is required"},
		{name: "unknown field", body: `{"nme":"a"}`, wantErr: `unknown field "nme"`},
		{name: "wrong type", body: `{"name":1}`, wantErr: `invalid value for field "name"`},
		{name: "two objects", body: `{"name":"a"}{"name":"b"}`, wantErr: "single JSON object"},
		{name: "malformed", body: `{"name":`, wantErr: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), req, &p, tt.allowEmpty)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
