package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/apierror"
)

// maxErrorBody caps how much of a response body is read for error reporting.
const maxErrorBody = 1 << 20

// ClientConfig holds the settings used by Client.
type ClientConfig struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Logger     zerolog.Logger
}

// ClientOption modifies a ClientConfig.
type ClientOption func(*ClientConfig)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = client
	}
}

// WithTimeout bounds each submission. Zero means no limit.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *ClientConfig) {
		c.UserAgent = userAgent
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// Client posts records to the upload endpoint.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a client for the upload endpoint at url.
func NewClient(url string, options ...ClientOption) *Client {
	config := &ClientConfig{
		URL:       url,
		UserAgent: "vaultform/1.0",
		Logger:    log.Logger,
	}
	for _, option := range options {
		option(config)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultClient()
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// Submit sends rec as one multipart POST authenticated with token. It makes a
// single attempt and never returns an error: every failure is folded into the
// Outcome.
func (c *Client) Submit(ctx context.Context, rec *Record, token string) Outcome {
	if rec == nil {
		rec = &Record{}
	}
	logger := c.config.Logger.With().Str("record", rec.ID).Str("file_name", rec.FileName).Logger()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var content io.ReadCloser
	if rec.File != nil {
		rc, err := rec.File.Open()
		if err != nil {
			logger.Error().Err(err).Msg("open attachment")
			return Failed(KindUnknownError, fmt.Sprintf("could not read %s: %v", rec.File.Name, err))
		}
		content = rc
	}

	body, contentType := newFormBody(rec, content)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, body)
	if err != nil {
		body.Close()
		logger.Error().Err(err).Msg("build upload request")
		return Failed(KindNetworkError, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("upload request failed")
		return Failed(KindNetworkError, networkMessage(err))
	}
	defer resp.Body.Close()

	logger = logger.With().
		Int("status", resp.StatusCode).
		Str("request_id", resp.Header.Get("X-Request-ID")).
		Dur("elapsed", time.Since(start)).
		Logger()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		logger.Warn().Err(err).Msg("read upload response")
		return Failed(KindNetworkError, networkMessage(err))
	}
	payload := decodeBody(resp, raw)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Info().Msg("file uploaded")
		return succeeded()
	}

	msg := apierror.Extract(payload)
	kind := KindValidationError
	switch {
	case apierror.Code(payload) == apierror.TokenNotValid:
		kind = KindAuthError
		logger.Error().Msg("authentication token is invalid or expired")
	case apierror.IsGeneric(msg):
		kind = KindUnknownError
	}
	logger.Warn().Str("kind", string(kind)).Str("reason", msg).Msg("upload rejected")
	return Failed(kind, msg)
}

// decodeBody interprets the response as JSON regardless of its declared
// content type, falling back to {"detail": text}.
func decodeBody(resp *http.Response, raw []byte) apierror.Payload {
	if p, err := apierror.Parse(raw); err == nil {
		return p
	}
	text := string(raw)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	if text == "" {
		text = fmt.Sprintf("Error: %d", resp.StatusCode)
	}
	return apierror.FromText(text)
}

func networkMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Network error"
}
