package slack

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const (
	// DefaultTimeout bounds a webhook request
	DefaultTimeout = 10 * time.Second

	// maxTextBytes keeps messages under the webhook payload limit
	maxTextBytes = 39000
)

// client implements Service over an incoming webhook
type client struct {
	webhookURL string
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithHTTPClient replaces the HTTP client used for webhook requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// New creates a new Slack service posting to webhookURL
func New(webhookURL string, opts ...Option) (Service, error) {
	if webhookURL == "" {
		return nil, goerr.New("Slack webhook URL is required")
	}

	c := &client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// PostReport posts report to the webhook channel
func (c *client) PostReport(ctx context.Context, report *Report) error {
	msg := &slack.WebhookMessage{
		Text: truncateToMaxBytes(formatReport(report), maxTextBytes),
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, c.webhookURL, c.httpClient, msg); err != nil {
		return goerr.Wrap(err, "failed to post report to Slack", goerr.V("title", report.Title))
	}
	return nil
}

func formatReport(report *Report) string {
	var b strings.Builder
	b.WriteString("*" + report.Title + "*\n")

	for _, s := range report.Sections {
		if len(s.Items) == 0 {
			continue
		}
		b.WriteString("\n" + s.Heading + "\n")
		for _, item := range s.Items {
			b.WriteString("• " + item + "\n")
		}
	}
	return b.String()
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a rune
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
