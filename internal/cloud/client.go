package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/constants"
	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/pkg/identity"
)

// Reporter performs one authenticated status exchange with the remote service.
type Reporter interface {
	Report(ctx context.Context, endpointPrefix string, cred identity.Credential, payload models.ReportPayload) ([]models.Command, error)
}

// Client is the HTTP implementation of Reporter.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Logger    zerolog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultRequestTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// NewWithHTTPClient creates a Client on top of an existing http.Client.
func NewWithHTTPClient(httpClient *http.Client, userAgent string, logger zerolog.Logger) *Client {
	return &Client{httpClient: httpClient, userAgent: userAgent, logger: logger}
}

// Report posts payload to <endpointPrefix>api/printer_statuses.json and returns the commands in the
// order the service sent them. An empty list means there is nothing to do.
func (c *Client) Report(ctx context.Context, endpointPrefix string, cred identity.Credential, payload models.ReportPayload) ([]models.Command, error) {
	endpoint := endpointPrefix + constants.StatusResourcePath

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize status report: %w", err)
	}
	c.logger.Debug().RawJSON("payload", body).Str("endpoint", endpoint).Msg("Sending status report")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set(constants.HeaderPrinterID, cred.ID)
	req.Header.Set(constants.HeaderPrinterToken, cred.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respB, err := io.ReadAll(io.LimitReader(resp.Body, constants.DefaultMaxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respB))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: msg}
	}

	return decodeCommands(resp.StatusCode, respB)
}

func decodeCommands(status int, body []byte) ([]models.Command, error) {
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return []models.Command{}, nil
	}

	var cmds []models.Command
	if err := json.Unmarshal(body, &cmds); err != nil {
		return nil, &ProtocolError{Err: err}
	}
	if cmds == nil {
		// JSON null
		cmds = []models.Command{}
	}
	return cmds, nil
}
