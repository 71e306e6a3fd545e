package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type Client struct {
	serverToken  string
	fromEmail    string
	businessName string
	httpClient   *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, businessName string, opts ...Option) *Client {
	c := &Client{
		serverToken:  serverToken,
		fromEmail:    fromEmail,
		businessName: businessName,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendWelcome delivers a customer's newly issued referral code.
func (c *Client) SendWelcome(toEmail, name, code string) error {
	subject := fmt.Sprintf("Your %s referral code", c.businessName)
	textBody := fmt.Sprintf(
		"Hi %s,\n\nThanks for booking with %s! Share your personal referral code with friends and earn store credit every time one of them completes a service:\n\n%s\n",
		name, c.businessName, code,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>Thanks for booking with %s! Share your personal referral code with friends and earn store credit every time one of them completes a service:</p><p><strong>%s</strong></p>`,
		name, c.businessName, code,
	)
	return c.send(toEmail, subject, htmlBody, textBody)
}

// SendCreditEarned tells a referrer they earned credit. Amount is in cents.
func (c *Client) SendCreditEarned(toEmail, name string, amount int64, referredName string) error {
	subject := fmt.Sprintf("You earned %s in credit!", FormatAmount(amount))
	textBody := fmt.Sprintf(
		"Hi %s,\n\n%s just completed their first service with %s using your referral code. We've added %s of store credit to your account.\n",
		name, referredName, c.businessName, FormatAmount(amount),
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>%s just completed their first service with %s using your referral code. We've added <strong>%s</strong> of store credit to your account.</p>`,
		name, referredName, c.businessName, FormatAmount(amount),
	)
	return c.send(toEmail, subject, htmlBody, textBody)
}

func (c *Client) send(toEmail, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

// FormatAmount renders cents as a dollar string, e.g. 1500 -> "$15.00".
func FormatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
