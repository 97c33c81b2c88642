package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/contracthub/backend/internal/logger"
	"github.com/contracthub/backend/internal/pkg/apperror"
	"github.com/contracthub/backend/internal/repository"
)

// sentinelStatus сопоставляет ошибки репозиториев с HTTP статусами.
var sentinelStatus = map[error]struct {
	status  int
	message string
}{
	repository.ErrUserNotFound:          {http.StatusNotFound, "пользователь не найден"},
	repository.ErrContractNotFound:      {http.StatusNotFound, "контракт не найден"},
	repository.ErrPartyNotFound:         {http.StatusNotFound, "сторона контракта не найдена"},
	repository.ErrMilestoneNotFound:     {http.StatusNotFound, "этап не найден"},
	repository.ErrEscrowNotFound:        {http.StatusNotFound, "запись леджера не найдена"},
	repository.ErrDisputeNotFound:       {http.StatusNotFound, "спор не найден"},
	repository.ErrWithdrawalNotFound:    {http.StatusNotFound, "заявка на вывод не найдена"},
	repository.ErrPayoutAccountNotFound: {http.StatusNotFound, "счёт для выплат не найден"},
	repository.ErrInsufficientFunds:     {http.StatusBadRequest, "недостаточно средств на балансе"},
}

// ErrorHandler обрабатывает ошибки централизованно: AppError уходит клиенту
// со своим кодом и деталями, ошибки репозиториев мапятся на статусы,
// всё остальное маскируется как внутренняя ошибка.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		var appErr *apperror.AppError
		if errors.As(err.Err, &appErr) {
			body := gin.H{"error": appErr.Message, "code": string(appErr.Code)}
			if appErr.Details != nil {
				body["details"] = appErr.Details
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		for sentinel, v := range sentinelStatus {
			if errors.Is(err.Err, sentinel) {
				c.JSON(v.status, gin.H{"error": v.message})
				return
			}
		}

		// Всё незнакомое — внутренняя ошибка. Текст наружу не уходит:
		// доменные ошибки обязаны приходить как AppError или sentinel.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
	}
}
