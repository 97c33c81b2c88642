package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
)

func serveWithError(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/boom", func(c *gin.Context) {
		c.Error(err)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestErrorHandler_AppError(t *testing.T) {
	w := serveWithError(t, apperror.New(apperror.ErrCodeInvalidTransition, "переход контракта draft → completed запрещён"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_STATUS_TRANSITION")
	assert.Contains(t, w.Body.String(), "запрещён")
}

func TestErrorHandler_RepositorySentinel(t *testing.T) {
	w := serveWithError(t, repository.ErrContractNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "контракт не найден")
}

func TestErrorHandler_UnknownErrorMaskedAs500(t *testing.T) {
	w := serveWithError(t, errors.New(`pq: duplicate key value violates unique constraint "users_email_key"`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "внутренняя ошибка сервера")
	assert.NotContains(t, w.Body.String(), "users_email_key")
}

func TestErrorHandler_UnknownRussianTextNotReclassified(t *testing.T) {
	// Текст ошибки не влияет на статус: без AppError или sentinel — всегда 500
	w := serveWithError(t, errors.New("неверный формат входных данных"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "неверный формат")
}
