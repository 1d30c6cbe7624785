package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxSubtitleBytes bounds a single subtitle download.
const maxSubtitleBytes = 10 << 20

// HTTPDownloader fetches subtitle files by direct URL.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

func NewHTTPDownloader(client *http.Client, userAgent string) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPDownloader{client: client, userAgent: userAgent}
}

func (d *HTTPDownloader) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return getBody(ctx, d.client, "http", rawURL, d.userAgent)
}

func getBody(ctx context.Context, client *http.Client, providerName, rawURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNotFound, Provider: providerName, Op: "fetch", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, Classify(providerName, "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(providerName, "fetch", resp, string(body))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSubtitleBytes+1))
	if err != nil {
		return nil, Classify(providerName, "fetch", fmt.Errorf("read body: %w", err))
	}
	if len(data) > maxSubtitleBytes {
		return nil, &FetchError{Kind: KindTransport, Provider: providerName, Op: "fetch", Err: errors.New("subtitle file too large")}
	}
	return data, nil
}
