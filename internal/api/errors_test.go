package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whenitworks/backend/internal/models"
	"github.com/whenitworks/backend/internal/upload"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "api error",
			err:        NewValidationError("file"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"code":"VALIDATION_ERROR","message":"validation failed for field: file"}`,
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("upload: %w", NewBadRequestError("invalid multipart form", nil)),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"code":"BAD_REQUEST","message":"invalid multipart form"}`,
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusNotFound, "Not Found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"code":"HTTP_ERROR","message":"Not Found"}`,
		},
		{
			name:       "unexpected error hides details",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"code":"UNKNOWN_ERROR","message":"An unexpected error occurred"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestErrorHandler_CommittedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.String(http.StatusOK, "done")

	ErrorHandler(NewInternalError("late", nil), c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}

func TestErrorHandler_Superseded(t *testing.T) {
	st := upload.State{
		Phase:     upload.PhaseReading,
		AttemptID: "attempt-1",
		File:      &models.FileInfo{Name: "slow.ics", Size: 12, SizeLabel: "12 Bytes"},
	}

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/api/upload", nil), rec)
	ErrorHandler(NewSupersededError(st), c)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SUPERSEDED", body.Code)
	require.NotNil(t, body.State)
	assert.Equal(t, "slow.ics", body.State.File.Name)
	assert.Equal(t, upload.PhaseReading, body.State.Phase)
}
