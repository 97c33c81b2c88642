package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client реализует Processor поверх JSON HTTP API процессора.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateFundingSession создаёт hosted checkout сессию на указанную сумму.
func (c *Client) CreateFundingSession(ctx context.Context, in CreateFundingSessionInput) (*FundingSession, error) {
	if in.AmountMinor <= 0 {
		return nil, fmt.Errorf("payments: сумма сессии должна быть положительной")
	}

	payload := map[string]any{
		"amount":   in.AmountMinor,
		"currency": in.Currency,
		"metadata": in.Metadata,
	}

	var session FundingSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetFundingSession возвращает текущее состояние сессии оплаты.
func (c *Client) GetFundingSession(ctx context.Context, sessionID string) (*FundingSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("payments: sessionID обязателен")
	}

	var session FundingSession
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// TransferFunds переводит средства на подключённый счёт.
func (c *Client) TransferFunds(ctx context.Context, in TransferInput) (*Transfer, error) {
	if in.AmountMinor <= 0 {
		return nil, fmt.Errorf("payments: сумма перевода должна быть положительной")
	}
	if in.Destination == "" {
		return nil, fmt.Errorf("payments: счёт назначения обязателен")
	}

	payload := map[string]any{
		"amount":         in.AmountMinor,
		"currency":       in.Currency,
		"destination":    in.Destination,
		"transfer_group": in.TransferGroup,
		"metadata":       in.Metadata,
	}

	var transfer Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", payload, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// GetConnectedAccountStatus возвращает живое состояние верификации счёта.
func (c *Client) GetConnectedAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	if accountID == "" {
		return nil, fmt.Errorf("payments: accountID обязателен")
	}

	var status AccountStatus
	path := "/v1/accounts/" + url.PathEscape(accountID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateConnectedAccount создаёт счёт для выплат и ссылку на onboarding.
func (c *Client) CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error) {
	payload := map[string]any{
		"type":  "express",
		"email": email,
	}

	var account ConnectedAccount
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", payload, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// do выполняет запрос к API процессора и декодирует ответ.
// Любой не-2xx ответ превращается в ProcessorError с сообщением процессора.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("payments: не удалось сериализовать запрос: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: не удалось создать запрос: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: запрос к процессору не удался: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr != nil || apiErr.Error.Message == "" {
			apiErr.Error.Message = resp.Status
		}
		return &ProcessorError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Error.Code,
			Message:    apiErr.Error.Message,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: не удалось разобрать ответ процессора: %w", err)
	}
	return nil
}
