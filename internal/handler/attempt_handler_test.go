package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	attempts []model.Attempt
	total    int
	err      error
	got      model.AttemptFilter
}

func (f *fakeLister) List(_ context.Context, filter model.AttemptFilter) ([]model.Attempt, int, error) {
	f.got = filter
	return f.attempts, f.total, f.err
}

func attemptRouter(l AttemptLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	r := gin.New()
	r.GET("/attempts", NewAttemptHandler(l, zerolog.Nop()).ListAttempts)
	return r
}

func TestListAttempts(t *testing.T) {
	l := &fakeLister{
		attempts: []model.Attempt{{ID: uuid.New(), Categories: []string{"history"}, Score: 3, MaxScore: 4}},
		total:    41,
	}
	w, env := do(t, attemptRouter(l), http.MethodGet, "/attempts?category=history&page=2&per_page=20", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, model.AttemptFilter{Category: "history", Page: 2, PerPage: 20}, l.got)

	var body struct {
		Pagination struct {
			Page       int `json:"page"`
			TotalItems int `json:"total_items"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Pagination.Page)
	assert.Equal(t, 41, body.Pagination.TotalItems)
	assert.Equal(t, 3, body.Pagination.TotalPages)

	var data struct {
		Attempts []model.Attempt `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Attempts, 1)
}

func TestListAttemptsDefaults(t *testing.T) {
	l := &fakeLister{}
	w, _ := do(t, attemptRouter(l), http.MethodGet, "/attempts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, l.got.Page)
	assert.Equal(t, defaultAttemptsPerPage, l.got.PerPage)
}

func TestListAttemptsRejectsBadPaging(t *testing.T) {
	w, env := do(t, attemptRouter(&fakeLister{}), http.MethodGet, "/attempts?per_page=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestListAttemptsStoreFailure(t *testing.T) {
	w, env := do(t, attemptRouter(&fakeLister{err: errors.New("db down")}), http.MethodGet, "/attempts", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
}
