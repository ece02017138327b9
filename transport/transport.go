package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/breez/lnunify/lightning"
)

// Transport moves request and response bytes between a backend client and
// its node. A body of type url.Values is sent form encoded, any other
// non-nil body as JSON.
type Transport interface {
	Do(ctx context.Context, method string, path string, body interface{}) (json.RawMessage, error)
}

type Client struct {
	baseUrl    string
	httpClient *http.Client
	header     http.Header
	username   string
	password   string
	basicAuth  bool
}

type Option func(*Client) error

func WithHeader(key string, value string) Option {
	return func(c *Client) error {
		c.header.Set(key, value)
		return nil
	}
}

func WithBasicAuth(username string, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		c.basicAuth = true
		return nil
	}
}

// WithRootCert trusts the given PEM encoded certificate, typically the
// self-signed certificate of the node.
func WithRootCert(pem []byte) Option {
	return func(c *Client) error {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("failed to append certificate")
		}

		c.httpClient = &http.Client{
			Timeout: c.httpClient.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		}
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = timeout
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = httpClient
		return nil
	}
}

func NewClient(baseUrl string, opts ...Option) (*Client, error) {
	if baseUrl == "" {
		return nil, fmt.Errorf("baseUrl not set")
	}

	if !strings.HasSuffix(baseUrl, "/") {
		baseUrl = baseUrl + "/"
	}

	c := &Client{
		baseUrl:    baseUrl,
		httpClient: &http.Client{},
		header:     make(http.Header),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
) (json.RawMessage, error) {
	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(
		ctx,
		method,
		c.baseUrl+strings.TrimPrefix(path, "/"),
		reader,
	)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext error: %w", err)
	}

	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.basicAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &lightning.ConnectionError{
			Op:  method + " " + path,
			Err: err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &lightning.ConnectionError{
			Op:  method + " " + path,
			Err: err,
		}
	}

	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}

	return json.RawMessage(data), nil
}
