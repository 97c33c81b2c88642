package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contracthub/backend/internal/dto"
	"github.com/contracthub/backend/internal/http/handlers/common"
	"github.com/contracthub/backend/internal/service"
)

// PayoutHandler предоставляет HTTP слой выплатного счёта: подключение
// к процессору и проверка KYC-требований.
type PayoutHandler struct {
	kyc *service.KYCService
}

// NewPayoutHandler создаёт хэндлер.
func NewPayoutHandler(kyc *service.KYCService) *PayoutHandler {
	return &PayoutHandler{kyc: kyc}
}

// Onboard обрабатывает POST /payouts/onboard: регистрирует connected-счёт
// у процессора и возвращает ссылку на онбординг.
func (h *PayoutHandler) Onboard(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	url, err := h.kyc.Onboard(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.OnboardingResponse{OnboardingURL: url})
}

// GetAccount обрабатывает GET /payouts/account: возвращает снапшот
// выплатного счёта без обращения к процессору.
func (h *PayoutHandler) GetAccount(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	account, err := h.kyc.GetSnapshot(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// CheckRequirements обрабатывает POST /kyc/check-requirements: живая
// проверка статуса счёта у процессора. Отказ — это результат, а не ошибка.
func (h *PayoutHandler) CheckRequirements(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	result, err := h.kyc.Check(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
