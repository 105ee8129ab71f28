package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"quiz-proctor/internal/domain"
)

// StatusError is a non-2xx answer from the quiz API that has no more
// specific domain meaning.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("quiz api: status %d", e.Status)
	}
	return fmt.Sprintf("quiz api: status %d: %s", e.Status, e.Message)
}

// Client talks to the quiz backend on behalf of candidates. It implements
// the directory, question loader, results and anti-cheat ports.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time

	mu     sync.Mutex
	tokens map[int64]*tokenPair
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
		tokens:  make(map[int64]*tokenPair),
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail"`
}

// do sends one request. telegramID selects the bearer token; zero sends the
// request anonymously.
func (c *Client) do(ctx context.Context, method, path string, telegramID int64, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if telegramID != 0 {
		if token := c.bearer(ctx, telegramID); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func statusError(status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	switch status {
	case http.StatusForbidden:
		reason := eb.Reason
		if reason == "" {
			reason = eb.Error
		}
		return &domain.BlockedError{Reason: reason}
	}
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = eb.Detail
	}
	return &StatusError{Status: status, Message: msg}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
