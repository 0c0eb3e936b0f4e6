// Package client is a Go client for the library command bridge. Query results
// are cached; every successful mutation invalidates and refetches the queries
// the catalog says it makes stale.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/pkg/catalog"
	"github.com/tiza/library-service/pkg/querycache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
	StaleTime  time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	baseURL    string
	http       *http.Client
	retryCount int
	retryDelay time.Duration
	cache      *querycache.Cache
	logger     zerolog.Logger
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       httpClient,
		retryCount: opts.RetryCount,
		retryDelay: opts.RetryDelay,
		cache: querycache.New(querycache.Options{
			StaleTime: opts.StaleTime,
			Logger:    opts.Logger,
		}),
		logger: opts.Logger,
	}
}

func (c *Client) Cache() *querycache.Cache {
	return c.cache
}

// APIError is a failure reported by the server.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	APIError
}

// Invoke runs a command and decodes its result into out, which may be nil.
func (c *Client) Invoke(ctx context.Context, command string, args interface{}, out interface{}) error {
	body, err := encodeArgs(args)
	if err != nil {
		return err
	}

	cmd, known := catalog.Lookup(command)

	var data []byte
	if known && cmd.IsQuery() {
		key := querycache.Key(command, body)
		data, err = c.cache.Get(ctx, command, key, func(ctx context.Context) ([]byte, error) {
			return c.call(ctx, command, body, c.retryCount)
		})
	} else {
		data, err = c.call(ctx, command, body, 0)
		if err == nil && known {
			c.afterMutation(ctx, cmd.Name, cmd.Invalidates)
		}
	}
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", command, err)
	}
	return nil
}

// HandleDataChanged applies a change announced by another client or by the
// server. An empty list drops everything.
func (c *Client) HandleDataChanged(ctx context.Context, command string, invalidates []string) error {
	if len(invalidates) == 0 {
		c.cache.InvalidateAll()
	} else {
		c.cache.Invalidate(invalidates...)
	}
	if err := c.cache.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh after %s: %w", command, err)
	}
	return nil
}

func (c *Client) afterMutation(ctx context.Context, command string, invalidates []string) {
	n := c.cache.Invalidate(invalidates...)
	if n == 0 {
		return
	}
	if err := c.cache.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Str("command", command).Msg("Failed to refetch invalidated queries")
	}
}

func encodeArgs(args interface{}) ([]byte, error) {
	if args == nil {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	return body, nil
}

// call posts one invocation. Transport failures and 5xx responses are retried
// up to retries times; the server's own verdicts are not.
func (c *Client) call(ctx context.Context, command string, body []byte, retries int) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1/invoke/%s", c.baseURL, command)

	var lastErr error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			c.logger.Warn().Int("attempt", i).Str("command", command).Msg("Retrying command")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to invoke %s: %w", command, err)
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			lastErr = fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
			if resp.StatusCode >= http.StatusInternalServerError {
				continue
			}
			return nil, lastErr
		}

		if env.Success {
			return env.Data, nil
		}

		apiErr := env.APIError
		apiErr.Status = resp.StatusCode
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = &apiErr
			continue
		}
		return nil, &apiErr
	}

	return nil, fmt.Errorf("failed to invoke %s after %d attempts: %w", command, retries+1, lastErr)
}
