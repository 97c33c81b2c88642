package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/contracthub/backend/internal/http/middleware"
)

// withTestUser подставляет авторизованного пользователя в контекст запроса.
func withTestUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Set(middleware.ContextRoleKey, "client")
		c.Next()
	}
}

func TestContractHandler_CreateContract_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ContractHandler{}
	r.POST("/contracts", handler.CreateContract)

	req, _ := http.NewRequest("POST", "/contracts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContractHandler_GetContract_InvalidUUID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ContractHandler{}
	r.GET("/contracts/:id", withTestUser(uuid.New()), handler.GetContract)

	req, _ := http.NewRequest("GET", "/contracts/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandler_CreateContract_InvalidClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ContractHandler{}
	r.POST("/contracts", withTestUser(uuid.New()), handler.CreateContract)

	body := `{"client_id":"bad","freelancer_id":"` + uuid.NewString() + `","title":"Редизайн сайта","description":"Полный редизайн корпоративного сайта","total_amount":1000,"type":"fixed"}`
	req, _ := http.NewRequest("POST", "/contracts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "client_id")
}

func TestContractHandler_SignContract_BadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ContractHandler{}
	r.POST("/contracts/:id/sign", withTestUser(uuid.New()), handler.SignContract)

	req, _ := http.NewRequest("POST", "/contracts/"+uuid.NewString()+"/sign", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscrowHandler_FundEscrow_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscrowHandler{}
	r.POST("/contracts/:id/escrow/fund", handler.FundEscrow)

	req, _ := http.NewRequest("POST", "/contracts/"+uuid.NewString()+"/escrow/fund", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalHandler_CheckEligibility_InvalidAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{}
	r.GET("/withdrawals/eligibility", withTestUser(uuid.New()), handler.CheckEligibility)

	req, _ := http.NewRequest("GET", "/withdrawals/eligibility?amount=-5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMilestoneHandler_StartMilestone_InvalidMilestoneID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &MilestoneHandler{}
	r.POST("/contracts/:id/milestones/:milestoneID/start", withTestUser(uuid.New()), handler.StartMilestone)

	req, _ := http.NewRequest("POST", "/contracts/"+uuid.NewString()+"/milestones/bad/start", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
