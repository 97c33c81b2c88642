package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/contracthub/backend/internal/dto"
	"github.com/contracthub/backend/internal/http/handlers/common"
	"github.com/contracthub/backend/internal/service"
)

// WithdrawalHandler предоставляет HTTP слой вывода средств.
type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

// NewWithdrawalHandler создаёт хэндлер.
func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// RequestWithdrawal обрабатывает POST /withdrawals/request.
func (h *WithdrawalHandler) RequestWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	withdrawal, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), service.RequestWithdrawalInput{
		UserID:           userID,
		Amount:           req.Amount,
		DestinationLast4: req.DestinationLast4,
		BankName:         req.BankName,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// ListWithdrawals обрабатывает GET /withdrawals: история выводов
// вместе с текущим балансом.
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := common.GetPagination(c)
	withdrawals, err := h.withdrawals.ListWithdrawals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	balance, err := h.withdrawals.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": withdrawals,
		"balance":     balance,
	})
}

// CheckEligibility обрабатывает GET /withdrawals/eligibility?amount=...
func (h *WithdrawalHandler) CheckEligibility(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount должен быть положительным числом"})
		return
	}

	eligibility, err := h.withdrawals.CheckEligibility(c.Request.Context(), userID, amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, eligibility)
}
