// Package assistant is a thin client for an OpenAI-compatible chat-completions endpoint
// used by the sales assistant.
package assistant

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
)

// ErrNotConfigured is returned when no API key is configured
var ErrNotConfigured = errors.New("assistant provider not configured")

// ErrEmptyReply is returned when the provider answers without choices
var ErrEmptyReply = errors.New("assistant returned no reply")

// SystemPrompt frames every conversation
const SystemPrompt = `Você é um assistente de vendas de uma loja de materiais de construção que atende clientes empresariais.
Ajude o vendedor a responder dúvidas do cliente sobre a proposta, sugerir produtos complementares e argumentos de fechamento.
Use apenas os dados da proposta fornecidos. Não invente preços, prazos ou descontos. Responda em português do Brasil, de forma objetiva.`

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls {baseURL}/chat/completions
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient builds a client from config
func NewClient(cfg *config.AssistantConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        &http.Client{Timeout: timeout},
	}
}

// Complete sends the conversation and returns the first choice
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("assistant: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("assistant: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// BuildMessages assembles the system prompt, the proposal context and the seller's question
func BuildMessages(question string, proposalData map[string]interface{}, clientQuestions []string) []Message {
	msgs := []Message{{Role: "system", Content: SystemPrompt}}

	if len(proposalData) > 0 {
		data, err := json.MarshalIndent(proposalData, "", "  ")
		if err == nil {
			msgs = append(msgs, Message{Role: "system", Content: "Dados da proposta:\n" + string(data)})
		}
	}

	if len(clientQuestions) > 0 {
		var b strings.Builder
		b.WriteString("Perguntas já feitas pelo cliente:\n")
		for _, q := range clientQuestions {
			if q = strings.TrimSpace(q); q != "" {
				b.WriteString("- ")
				b.WriteString(q)
				b.WriteString("\n")
			}
		}
		msgs = append(msgs, Message{Role: "system", Content: strings.TrimRight(b.String(), "\n")})
	}

	return append(msgs, Message{Role: "user", Content: question})
}
