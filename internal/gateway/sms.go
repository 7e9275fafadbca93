package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"emergency-service/internal/dispatch"
	"emergency-service/pkg/consul"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// SMSGateway sends sms/call alerts through the gateway service discovered
// via consul. It implements dispatch.Transport.
type SMSGateway struct {
	consulClient *consulapi.Client
	serviceName  string
	httpClient   *http.Client
	logger       *zap.SugaredLogger
}

func NewSMSGateway(consulClient *consulapi.Client, serviceName string, logger *zap.SugaredLogger) *SMSGateway {
	return &SMSGateway{
		consulClient: consulClient,
		serviceName:  serviceName,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	Priority  string `json:"priority"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (g *SMSGateway) Send(ctx context.Context, recipient, body string, priority dispatch.Priority) (bool, error) {

	addr, err := consul.ServiceAddress(g.consulClient, g.serviceName)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", g.serviceName, err)
	}

	payload, err := json.Marshal(sendRequest{
		Recipient: recipient,
		Body:      body,
		Priority:  string(priority),
	})
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("http://%s/api/v1/messages/send", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}

	if !result.Success {
		g.logger.Warnw("Gateway refused message", "recipient", recipient, "reason", result.Message)
	}

	return result.Success, nil
}
