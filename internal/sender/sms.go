package sender

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const UserAgent = "MemberHub/CampaignEngine-1.0"

// SMSSender attempts exactly one delivery through the SMS channel.
type SMSSender interface {
	Send(ctx context.Context, number, message string) error
}

type smsSender struct {
	client *retryablehttp.Client

	apiURL string
	from   string

	username string
	password string
}

// NewSMSSender wires a 46elks-style transactional SMS API as the SMS channel.
// Each call is a single attempt; batch-level pacing is the caller's job, so
// the HTTP client's own retries are disabled.
func NewSMSSender(apiURL, from, username, password string) (SMSSender, error) {
	if username == "" || password == "" {
		return nil, errors.New("sms credentials are not configured")
	}
	if from == "" {
		return nil, errors.New("sms from number is not configured")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.HTTPClient.Timeout = 20 * time.Second

	return &smsSender{
		client:   client,
		apiURL:   apiURL,
		from:     from,
		username: username,
		password: password,
	}, nil
}

func (s *smsSender) Send(ctx context.Context, number, message string) error {
	if number == "" {
		// Phone presence is the caller's precondition; an empty number is
		// not a provider failure.
		return nil
	}

	body := url.Values{
		"from":    {s.from},
		"to":      {number},
		"message": {message},
	}.Encode()

	req, err := retryablehttp.NewRequest(http.MethodPost, s.apiURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return err
	}

	req = req.WithContext(ctx)
	req.SetBasicAuth(s.username, s.password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send sms")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 || resp.StatusCode <= 199 {
		return errors.Errorf("unexpected response code %d received from sms provider", resp.StatusCode)
	}

	return nil
}
