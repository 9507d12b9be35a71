package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SMS is an outbound text message.
type SMS struct {
	To      []string
	Message string
}

// SMSSender delivers SMS through a provider.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMS) (providerRef string, err error)
	Name() string
}

// LogSMSSender only records the message.
type LogSMSSender struct {
	logger *zap.Logger
}

// NewLogSMSSender constructs a log-only SMS sender.
func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSMSSender{logger: logger}
}

// Name identifies the provider.
func (s *LogSMSSender) Name() string { return "log" }

// SendSMS logs the message instead of delivering it.
func (s *LogSMSSender) SendSMS(ctx context.Context, msg SMS) (string, error) {
	s.logger.Info("sms dispatched (log provider)", zap.Strings("to", msg.To), zap.Int("length", len(msg.Message)))
	return "", nil
}

type gatewayRequest struct {
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// HTTPGatewaySender posts SMS batches to a JSON HTTP gateway.
type HTTPGatewaySender struct {
	client *resty.Client
	sender string
	logger *zap.Logger
}

// NewHTTPGatewaySender constructs an SMS sender for a bearer-token HTTP gateway.
func NewHTTPGatewaySender(baseURL, token, sender string, logger *zap.Logger) *HTTPGatewaySender {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPGatewaySender{client: client, sender: sender, logger: logger}
}

// Name identifies the provider.
func (s *HTTPGatewaySender) Name() string { return "http" }

// SendSMS posts the message to the gateway's /messages endpoint.
func (s *HTTPGatewaySender) SendSMS(ctx context.Context, msg SMS) (string, error) {
	var result gatewayResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{From: s.sender, Recipients: msg.To, Message: msg.Message}).
		SetResult(&result).
		SetError(&result).
		Post("/messages")
	if err != nil {
		return "", fmt.Errorf("sms gateway request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("sms gateway status %d: %s", resp.StatusCode(), result.Error)
	}
	s.logger.Debug("sms gateway accepted message", zap.String("id", result.ID), zap.String("status", result.Status))
	return result.ID, nil
}
