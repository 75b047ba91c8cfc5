package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CleanupClient calls the admin-cleanup-user serverless function.
type CleanupClient struct {
	url  string
	http *http.Client
}

type cleanupRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type cleanupResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func NewCleanupClient(url string, timeout time.Duration) *CleanupClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CleanupClient{url: url, http: &http.Client{Timeout: timeout}}
}

func (c *CleanupClient) Cleanup(ctx context.Context, bearerToken, kind, id string) error {
	if c.url == "" {
		return errors.New("cleanup function url not configured")
	}

	body, err := json.Marshal(cleanupRequest{Type: kind, ID: id})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build cleanup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call cleanup function: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read cleanup response: %w", err)
	}

	var out cleanupResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("cleanup function returned %d", resp.StatusCode)
		}
		return fmt.Errorf("decode cleanup response: %w", err)
	}

	if !out.Success {
		if out.Error == "" {
			out.Error = fmt.Sprintf("cleanup function returned %d", resp.StatusCode)
		}
		return errors.New(out.Error)
	}
	return nil
}
