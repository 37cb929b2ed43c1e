package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

var errNotConfigured = errors.New("twilio credentials not configured")

// TwilioNotifier sends SMS through the Twilio Messages REST API.
type TwilioNotifier struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

func NewTwilioNotifier(accountSID, authToken, from string, timeout time.Duration) *TwilioNotifier {
	return &TwilioNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    "https://api.twilio.com/2010-04-01",
		httpClient: &http.Client{Timeout: timeout},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "twilio",
			MaxRequests: 1,
			Interval:    1 * time.Minute,
			Timeout:     1 * time.Minute,
		}),
	}
}

func (t *TwilioNotifier) Notify(ctx context.Context, to, message string) error {
	if t.accountSID == "" || t.authToken == "" {
		return errNotConfigured
	}

	form := url.Values{
		"To":   {to},
		"From": {t.from},
		"Body": {message},
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))

	_, err := t.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.SetBasicAuth(t.accountSID, t.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send sms: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("twilio API error: status %d: %s", resp.StatusCode, body)
		}
		return nil, nil
	})
	return err
}
