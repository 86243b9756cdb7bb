package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lsm/karajan/internal/retry"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// APIError is a Bot API call that completed with ok=false or a non-2xx status.
type APIError struct {
	Method      string
	Code        int
	Description string
	Wait        time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Temporary reports whether the call may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RetryAfter returns the flood-control wait requested by the server.
func (e *APIError) RetryAfter() time.Duration { return e.Wait }

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// Client calls the Telegram Bot API.
type Client struct {
	baseURL string
	http    *resty.Client
	retry   retry.Config
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different Bot API server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetry overrides the retry policy for sendMessage.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Bot API client for the given token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		retry:   retry.DefaultConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	base := c.baseURL + "/bot" + token
	c.http = resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	return c, nil
}

// GetUpdates long-polls for updates starting at offset. Updates are returned
// undecoded so fields the host does not model still reach the guest.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]json.RawMessage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  strconv.FormatInt(offset, 10),
			"timeout": strconv.Itoa(int(timeout / time.Second)),
		}).
		Get("/getUpdates")
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}
	result, err := c.decode("getUpdates", resp)
	if err != nil {
		return nil, err
	}
	var updates []json.RawMessage
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decode getUpdates result: %w", err)
	}
	return updates, nil
}

// SendMessage delivers text to a chat. Transport errors, 429 and 5xx
// responses are retried; other failures are returned immediately.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	body := sendMessageRequest{ChatID: chatID, Text: text}
	return retry.Do(ctx, c.retry, func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post("/sendMessage")
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("telegram sendMessage: %w", err)
		}
		if _, err := c.decode("sendMessage", resp); err != nil {
			if apiErr, ok := err.(*APIError); ok && apiErr.Temporary() {
				c.logger.Warn("sendMessage rejected, retrying", "chat_id", chatID, "code", apiErr.Code)
				return err
			}
			return retry.Permanent(err)
		}
		return nil
	})
}

// SetWebhook registers url as the update destination for the bot.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(setWebhookRequest{URL: url, SecretToken: secretToken, AllowedUpdates: []string{"message"}}).
		Post("/setWebhook")
	if err != nil {
		return fmt.Errorf("telegram setWebhook: %w", err)
	}
	_, err = c.decode("setWebhook", resp)
	return err
}

// DeleteWebhook removes any webhook so getUpdates can be used.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Post("/deleteWebhook")
	if err != nil {
		return fmt.Errorf("telegram deleteWebhook: %w", err)
	}
	_, err = c.decode("deleteWebhook", resp)
	return err
}

func (c *Client) decode(method string, resp *resty.Response) (json.RawMessage, error) {
	var out apiResponse
	decodeErr := json.Unmarshal(resp.Body(), &out)
	if resp.IsSuccess() && decodeErr == nil && out.OK {
		return out.Result, nil
	}
	apiErr := &APIError{Method: method, Code: resp.StatusCode(), Description: out.Description}
	if out.ErrorCode != 0 {
		apiErr.Code = out.ErrorCode
	}
	if apiErr.Description == "" {
		apiErr.Description = http.StatusText(resp.StatusCode())
	}
	if out.Parameters != nil && out.Parameters.RetryAfter > 0 {
		apiErr.Wait = time.Duration(out.Parameters.RetryAfter) * time.Second
	}
	return nil, apiErr
}
