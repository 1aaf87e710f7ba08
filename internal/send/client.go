// Package send issues calls to the platform's Send API: messages,
// sender actions and attachment uploads, with bounded retry on
// transient failures.
package send

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/boomerangbot/boomerang/internal/messages"
)

const defaultBaseURL = "https://graph.facebook.com/v2.6"

// rate-limit code the platform returns alongside HTTP 200/4xx bodies
const codeRateLimited = 613

// Action is a sender action: a conversational indicator without content.
type Action string

const (
	ActionMarkSeen  Action = "mark_seen"
	ActionTypingOn  Action = "typing_on"
	ActionTypingOff Action = "typing_off"
)

// Result is the successful outcome of one outbound call.
type Result struct {
	MessageID   string
	RecipientID string
}

// Config configures a Client.
type Config struct {
	PageToken   string
	BaseURL     string // defaults to the Graph API endpoint
	MaxAttempts int    // total attempts per call, minimum 1
	BackoffBase time.Duration
	BackoffCap  time.Duration
	HTTPClient  *http.Client
}

// Client talks to the Send API. Safe for concurrent use.
type Client struct {
	pageToken   string
	baseURL     string
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	http        *http.Client
}

// NewClient creates a Client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		pageToken:   cfg.PageToken,
		baseURL:     cfg.BaseURL,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		http:        cfg.HTTPClient,
	}
}

// Send delivers a message to the given recipient.
func (c *Client) Send(ctx context.Context, recipientID string, msg *messages.Message) (Result, error) {
	payload, err := msg.Payload()
	if err != nil {
		return Result{}, err
	}
	return c.call(ctx, "/me/messages", map[string]any{
		"recipient": map[string]any{"id": recipientID},
		"message":   payload,
	})
}

// SendAction delivers a sender action such as typing_on or mark_seen.
func (c *Client) SendAction(ctx context.Context, recipientID string, action Action) (Result, error) {
	return c.call(ctx, "/me/messages", map[string]any{
		"recipient":     map[string]any{"id": recipientID},
		"sender_action": string(action),
	})
}

// UploadAttachment registers media with the platform for reuse and
// returns the attachment id to reference in later sends.
func (c *Client) UploadAttachment(ctx context.Context, kind, url string) (string, error) {
	att := messages.MediaAttachment{Kind: kind, URL: url}
	payload := att.AttachmentPayload()
	payload["payload"].(map[string]any)["is_reusable"] = true

	result, err := c.call(ctx, "/me/message_attachments", map[string]any{
		"message": map[string]any{"attachment": payload},
	})
	if err != nil {
		return "", err
	}
	return result.MessageID, nil
}

// Acknowledge marks the conversation seen and shows a typing indicator,
// telling the user their message is being processed. Both actions are
// best-effort: failures are logged and never block a subsequent reply.
func (c *Client) Acknowledge(ctx context.Context, recipientID string) {
	if _, err := c.SendAction(ctx, recipientID, ActionMarkSeen); err != nil {
		slog.Warn("send: acknowledge mark_seen failed", "recipient", recipientID, "err", err)
	}
	if _, err := c.SendAction(ctx, recipientID, ActionTypingOn); err != nil {
		slog.Warn("send: acknowledge typing_on failed", "recipient", recipientID, "err", err)
	}
}

// apiResponse is the success body of a Send API call; apiError the
// failure body.
type apiResponse struct {
	MessageID    string `json:"message_id"`
	RecipientID  string `json:"recipient_id"`
	AttachmentID string `json:"attachment_id"`
	Error        *struct {
		Message string `json:"message"`
		Code    int64  `json:"code"`
	} `json:"error"`
}

// call runs one outbound call through the retry loop. Retryable
// failures back off exponentially with jitter until MaxAttempts is
// spent; fatal failures return immediately.
func (c *Client) call(ctx context.Context, path string, body map[string]any) (Result, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("send: compose request: %w", err)
	}
	url := c.baseURL + path + "?access_token=" + c.pageToken

	var lastErr *Error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, callErr := c.attempt(ctx, url, raw)
		if callErr == nil {
			return result, nil
		}
		callErr.Attempts = attempt
		if callErr.Class == FailureFatal {
			return Result{}, callErr
		}
		lastErr = callErr

		if attempt == c.maxAttempts {
			break
		}
		slog.Debug("send: retrying after transient failure",
			"attempt", attempt, "status", callErr.StatusCode, "err", callErr)
		if err := c.wait(ctx, attempt); err != nil {
			// Cancelled while backing off; surface the classified error
			// without further attempts.
			return Result{}, callErr
		}
	}

	lastErr.Exhausted = true
	return Result{}, lastErr
}

// attempt performs one HTTP round trip and classifies the outcome.
func (c *Client) attempt(ctx context.Context, url string, raw []byte) (Result, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return Result{}, &Error{Class: FailureFatal, cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are transient by definition.
		return Result{}, &Error{Class: FailureRetryable, cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Class: FailureRetryable, StatusCode: resp.StatusCode, cause: err}
	}

	var parsed apiResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		id := parsed.MessageID
		if id == "" {
			id = parsed.AttachmentID
		}
		return Result{MessageID: id, RecipientID: parsed.RecipientID}, nil
	}

	sendErr := &Error{StatusCode: resp.StatusCode}
	if parsed.Error != nil {
		sendErr.Code = parsed.Error.Code
		sendErr.Message = parsed.Error.Message
	}

	switch {
	case resp.StatusCode >= 500:
		sendErr.Class = FailureRetryable
	case resp.StatusCode == http.StatusTooManyRequests || sendErr.Code == codeRateLimited:
		sendErr.Class = FailureRetryable
	default:
		sendErr.Class = FailureFatal
	}
	return Result{}, sendErr
}

// wait sleeps for the backoff delay of the given attempt, doubling from
// the base up to the cap with uniform jitter, or returns early when ctx
// is cancelled.
func (c *Client) wait(ctx context.Context, attempt int) error {
	delay := c.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.backoffCap {
			delay = c.backoffCap
			break
		}
	}
	jittered := delay/2 + time.Duration(rand.Int63n(int64(delay/2+1)))

	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
