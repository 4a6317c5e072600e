package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TelegramSettings capture the runtime configuration required by the Telegram notifier.
type TelegramSettings struct {
	Enabled bool
	Token   string
	APIBase string
	Timeout time.Duration
}

// TelegramOption customises the Telegram notifier.
type TelegramOption func(*telegramNotifier)

// WithHTTPClient injects a custom HTTP client, primarily for testing.
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(n *telegramNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

type telegramNotifier struct {
	cfg    TelegramSettings
	client *http.Client
}

// NewTelegramNotifier constructs a Notifier backed by the Telegram Bot HTTP API.
func NewTelegramNotifier(cfg TelegramSettings, opts ...TelegramOption) (Notifier, error) {
	if cfg.Enabled && strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is required when enabled")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	n := &telegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *telegramNotifier) IssueAccessGrant(ctx context.Context, destination string) (AccessGrant, error) {
	if !n.cfg.Enabled {
		return AccessGrant{}, ErrNotifierDisabled
	}

	var result struct {
		InviteLink string `json:"invite_link"`
	}
	err := n.call(ctx, "createChatInviteLink", map[string]any{
		"chat_id":      destination,
		"member_limit": 1,
	}, &result)
	if err != nil {
		return AccessGrant{}, err
	}
	if result.InviteLink == "" {
		return AccessGrant{}, errors.New("telegram: createChatInviteLink returned no link")
	}

	return AccessGrant{Link: result.InviteLink}, nil
}

func (n *telegramNotifier) RevokeAccessGrant(ctx context.Context, destination string, grant AccessGrant) error {
	if !n.cfg.Enabled {
		return ErrNotifierDisabled
	}
	if grant.Link == "" {
		return errors.New("telegram: grant link is required")
	}

	return n.call(ctx, "revokeChatInviteLink", map[string]any{
		"chat_id":     destination,
		"invite_link": grant.Link,
	}, nil)
}

func (n *telegramNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	if !n.cfg.Enabled {
		return ErrNotifierDisabled
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("telegram: message text is required")
	}

	return n.call(ctx, "sendMessage", map[string]any{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}, nil)
}

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (n *telegramNotifier) call(ctx context.Context, method string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", n.cfg.APIBase, n.cfg.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: %s: decode response: %w", method, err)
	}

	if !envelope.OK {
		if unreachableResponse(envelope) {
			return fmt.Errorf("telegram: %s: %s: %w", method, envelope.Description, ErrRecipientUnreachable)
		}
		return fmt.Errorf("telegram: %s: api error %d: %s", method, envelope.ErrorCode, envelope.Description)
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}

	return nil
}

// unreachableResponse identifies the Bot API failures that mean the recipient
// can never be delivered to, as opposed to transient transport problems.
func unreachableResponse(env apiEnvelope) bool {
	desc := strings.ToLower(env.Description)
	if env.ErrorCode == http.StatusForbidden {
		return true
	}
	return strings.Contains(desc, "chat not found") ||
		strings.Contains(desc, "user is deactivated") ||
		strings.Contains(desc, "bot was blocked")
}
