// Package mailer sends transactional email through an HTTP email API.
package mailer

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client posts messages to the provider's send endpoint.
type Client struct {
	http   *resty.Client
	apiURL string
	from   string
	logger *zap.Logger
}

func New(apiURL, apiKey, from string, logger *zap.Logger) *Client {
	http := resty.New().
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, apiURL: apiURL, from: from, logger: logger}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// SendVerificationEmail sends the account verification email.
func (c *Client) SendVerificationEmail(ctx context.Context, to, username, verifyURL string) error {
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
			<h2 style="color: #16a34a;">Welcome to GrowFrika, %s!</h2>
			<p>Thank you for registering. Please verify your email address by clicking the button below:</p>
			<a href="%s"
			   style="display: inline-block; padding: 12px 24px; background-color: #16a34a; color: white; text-decoration: none; border-radius: 8px; margin: 20px 0;">
				Verify Email
			</a>
			<p>Or copy this link: %s</p>
			<p>This link will expire in 24 hours.</p>
			<p style="color: #666; font-size: 12px;">If you didn't create this account, please ignore this email.</p>
		</div>`, username, verifyURL, verifyURL)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    c.from,
			To:      to,
			Subject: "Verify Your GrowFrika Account",
			HTML:    body,
		}).
		Post(c.apiURL)
	if err != nil {
		return fmt.Errorf("email send request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("email provider returned %s: %s", resp.Status(), resp.String())
	}

	c.logger.Info("verification email sent", zap.String("to", to))
	return nil
}

// Noop discards all email. Used in development and tests when no provider is
// configured.
type Noop struct {
	Logger *zap.Logger
}

func (n Noop) SendVerificationEmail(_ context.Context, to, _, verifyURL string) error {
	if n.Logger != nil {
		n.Logger.Info("email disabled, skipping verification email",
			zap.String("to", to), zap.String("url", verifyURL))
	}
	return nil
}
