package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// EmailClient delivers transactional email through an external HTTP API.
type EmailClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	timeout    time.Duration
}

// NewEmailClient creates an email client with the specified timeout. An empty
// apiURL leaves the client in skip mode, where sends are logged and dropped.
func NewEmailClient(apiURL, apiKey string, timeoutMS int) *EmailClient {
	return &EmailClient{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
		apiURL:  apiURL,
		apiKey:  apiKey,
		timeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send delivers one email.
// This method NEVER returns errors to the caller - all failures are logged at
// WARN level so email outages do not impact the calling code (e.g., the
// invitation flow).
func (c *EmailClient) Send(ctx context.Context, to, subject, body string) {
	if c.apiURL == "" {
		log.Info().
			Str("to", to).
			Str("subject", subject).
			Msg("Email delivery not configured, skipping send")
		return
	}

	jsonData, err := json.Marshal(emailPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		log.Warn().
			Err(err).
			Str("to", to).
			Msg("Failed to marshal email payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Warn().
			Err(err).
			Str("api_url", "<set>").
			Msg("Failed to create email request")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeoutError(err) {
			log.Warn().
				Err(err).
				Dur("timeout_ms", c.timeout).
				Str("to", to).
				Msg("Email delivery timed out")
		} else {
			log.Warn().
				Err(err).
				Str("to", to).
				Msg("Failed to send email")
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("to", to).
			Msg("Email API returned error status")
		return
	}

	log.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("Email sent successfully")
}

// isTimeoutError checks if an error is a timeout error
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "context deadline exceeded" ||
		err.Error() == "Client.Timeout exceeded"
}

func inviteEmailBody(companyName, inviteURL string) string {
	return fmt.Sprintf(
		"You have been invited to join %s on InternHub.\n\n"+
			"Accept the invitation within 7 days:\n%s\n\n"+
			"If you were not expecting this, you can ignore this email.",
		companyName,
		inviteURL,
	)
}
