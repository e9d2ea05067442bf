// Package whatsapp sends text messages through the Z-API WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brasmat/proposal-api/internal/config"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no instance or token is configured
var ErrNotConfigured = errors.New("whatsapp gateway not configured")

// Message is one outbound text message. Token overrides the configured instance token.
type Message struct {
	ToPhone   string
	FromPhone string
	Text      string
	Token     string
}

// Result is the gateway acknowledgement
type Result struct {
	MessageID string
	Phone     string
}

// GatewayError is a non-success response from the gateway
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("whatsapp gateway returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to a single Z-API instance
type Client struct {
	baseURL     string
	instanceID  string
	token       string
	clientToken string
	region      string
	http        *http.Client
	logger      *zap.Logger
}

type sendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendTextResponse struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
	Error     string `json:"error"`
}

// NewClient builds a client from config. It does not contact the gateway.
func NewClient(cfg *config.WhatsAppConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		instanceID:  cfg.InstanceID,
		token:       cfg.Token,
		clientToken: cfg.ClientToken,
		region:      cfg.Region,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Region is the default region used for phone normalisation
func (c *Client) Region() string {
	if c.region == "" {
		return DefaultRegion
	}
	return c.region
}

// Send delivers a text message
func (c *Client) Send(ctx context.Context, msg Message) (*Result, error) {
	token := msg.Token
	if token == "" {
		token = c.token
	}
	if c.instanceID == "" || token == "" || c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	phone, err := NormalizePhone(msg.ToPhone, c.Region())
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(sendTextRequest{Phone: phone, Message: msg.Text})
	if err != nil {
		return nil, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/send-text", c.baseURL, c.instanceID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.clientToken != "" {
		req.Header.Set("Client-Token", c.clientToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var parsed sendTextResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode whatsapp response: %w", err)
	}
	if parsed.Error != "" {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: parsed.Error}
	}

	messageID := parsed.MessageID
	if messageID == "" {
		messageID = parsed.ID
	}

	c.logger.Info("whatsapp message sent",
		zap.String("phone", phone),
		zap.String("message_id", messageID),
	)
	return &Result{MessageID: messageID, Phone: phone}, nil
}
