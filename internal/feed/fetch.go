package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Bulletin is an external update feed payload.
type Bulletin struct {
	Updates []BulletinItem `json:"updates"`
}

// BulletinItem is one externally published update.
type BulletinItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Fetcher pulls bulletins from a remote JSON endpoint.
type Fetcher struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewFetcher returns a fetcher for url. A nil client gets a 10s timeout.
func NewFetcher(url, token string, client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{url: url, token: token, client: client, logger: logger}
}

// Fetch GETs the bulletin. Any non-200 response is an error.
func (f *Fetcher) Fetch(ctx context.Context) (*Bulletin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("bulletin fetch failed", zap.String("url", f.url), zap.Error(err))
		return nil, fmt.Errorf("fetch bulletin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		f.logger.Warn("bulletin fetch rejected", zap.String("url", f.url), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("fetch bulletin: status %d: %s", resp.StatusCode, body)
	}

	var b Bulletin
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bulletin: %w", err)
	}
	f.logger.Info("bulletin fetched", zap.String("url", f.url), zap.Int("updates", len(b.Updates)))
	return &b, nil
}
