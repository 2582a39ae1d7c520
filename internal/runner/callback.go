package runner

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

	"github.com/cenkalti/backoff/v4"
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/domain/job"
)

const (
	callbackPath        = "/airflow/update-status"
	callbackTokenHeader = "X-Callback-Token"
)

// ErrCallbackRejected means the API refused the report; retrying will not help.
var ErrCallbackRejected = errors.New("callback rejected")

// Notifier reports job progress back to the API.
type Notifier interface {
	Notify(ctx context.Context, fileID string, status job.Status, resultURL string) error
}

// CallbackClient posts status reports to the API's runner callback.
type CallbackClient struct {
	endpoint string
	secret   string
	client   *http.Client
	retries  uint64

	// initialInterval is the first backoff delay.
	initialInterval time.Duration
}

func NewCallbackClient(cfg config.RunnerConfig, secret string) *CallbackClient {
	return &CallbackClient{
		endpoint:        strings.TrimRight(cfg.APIURL, "/") + callbackPath,
		secret:          secret,
		client:          &http.Client{Timeout: cfg.CallbackTimeout},
		retries:         uint64(max(cfg.CallbackRetries-1, 0)),
		initialInterval: 500 * time.Millisecond,
	}
}

type callbackBody struct {
	FileID    string `json:"file_id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

// Notify retries transport failures and 5xx/429 responses with exponential
// backoff. Other 4xx responses fail immediately with ErrCallbackRejected.
func (c *CallbackClient) Notify(ctx context.Context, fileID string, status job.Status, resultURL string) error {
	body, err := json.Marshal(callbackBody{FileID: fileID, Status: string(status), ResultURL: resultURL})
	if err != nil {
		return err
	}

	op := func() error {
		return c.post(ctx, body)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.retries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("notify %s for %s: %w", status, fileID, err)
	}
	return nil
}

func (c *CallbackClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(callbackTokenHeader, c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(fmt.Errorf("%w: %v", ErrCallbackRejected, err))
}
