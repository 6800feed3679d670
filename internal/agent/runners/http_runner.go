package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AgentTree/internal/agent/domain"
	"AgentTree/internal/shared/constants"
)

const maxRedirects = 10

// HTTPRunner reports the response status code of a request to target.
type HTTPRunner struct {
	client *http.Client
	scheme string
}

func NewHTTPRunner(scheme string) *HTTPRunner {
	return &HTTPRunner{
		scheme: scheme,
		client: &http.Client{
			Timeout: constants.HTTPTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (r *HTTPRunner) Execute(ctx context.Context, target string, options map[string]interface{}) (domain.Value, error) {
	fullURL, err := r.normalizeURL(target)
	if err != nil {
		return domain.Value{}, fmt.Errorf("invalid URL: %w", err)
	}

	method := strings.ToUpper(getStringOption(options, "method", http.MethodGet))
	followRedirects := getBoolOption(options, "follow_redirects", true)
	verifySSL := getBoolOption(options, "verify_ssl", true)

	client := r.configureClient(followRedirects, verifySSL)

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return domain.Value{}, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range getHeadersOption(options) {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "AgentTree/1.0")
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.Value{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return domain.Integer(int64(resp.StatusCode)), nil
}

func (r *HTTPRunner) normalizeURL(target string) (string, error) {
	if u, err := url.Parse(target); err == nil && u.Scheme != "" && u.Host != "" {
		return target, nil
	}
	u, err := url.Parse(r.scheme + "://" + target)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid URL format: %s", target)
	}
	return u.String(), nil
}

func (r *HTTPRunner) configureClient(followRedirects, verifySSL bool) *http.Client {
	if followRedirects && verifySSL {
		return r.client
	}

	transport := r.client.Transport.(*http.Transport).Clone()
	transport.TLSClientConfig.InsecureSkipVerify = !verifySSL

	client := *r.client
	client.Transport = transport

	if !followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &client
}
