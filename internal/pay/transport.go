package pay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	apiDomain      = "https://api.mch.weixin.qq.com"
	jsapiOrderPath = "/v3/pay/transactions/jsapi"
)

// PrepayRequest describes the order to open with the provider. Amounts are in
// cents.
type PrepayRequest struct {
	Description     string
	MerchantOrderNo string
	AmountCents     int64
	OpenID          string
	Attach          string
	ExpireAt        time.Time
}

// Prepayer opens a prepay session with the payment provider. Handlers depend
// on this interface so tests can stub the provider away.
type Prepayer interface {
	CreatePrepay(ctx context.Context, req PrepayRequest) (prepayID string, err error)
}

// CreatePrepay opens a JSAPI prepay session over HTTPS.
func (c *Client) CreatePrepay(ctx context.Context, req PrepayRequest) (string, error) {
	body := map[string]any{
		"appid":        c.cfg.AppID,
		"mchid":        c.cfg.MerchantID,
		"description":  req.Description,
		"out_trade_no": req.MerchantOrderNo,
		"notify_url":   c.cfg.NotifyURL,
		"amount": map[string]any{
			"total":    req.AmountCents,
			"currency": "CNY",
		},
		"payer": map[string]any{
			"openid": req.OpenID,
		},
	}
	if req.Attach != "" {
		body["attach"] = req.Attach
	}
	if !req.ExpireAt.IsZero() {
		body["time_expire"] = req.ExpireAt.Format(time.RFC3339)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding prepay request: %w", err)
	}

	authorization, err := c.AuthorizationHeader(http.MethodPost, jsapiOrderPath, string(raw))
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiDomain+jsapiOrderPath, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", authorization)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling prepay endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading prepay response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("prepay rejected: %s (%s)", apiErr.Message, apiErr.Code)
		}
		return "", fmt.Errorf("prepay rejected with status %d", resp.StatusCode)
	}

	var result struct {
		PrepayID string `json:"prepay_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding prepay response: %w", err)
	}
	if result.PrepayID == "" {
		return "", fmt.Errorf("prepay response missing prepay_id")
	}
	return result.PrepayID, nil
}
