package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/config"
	apperrors "github.com/lososs/callagent/internal/errors"
)

// Dialer starts outbound calls through the provider's REST API.
type Dialer struct {
	apiURL     string
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDialer creates a Dialer from configuration.
func NewDialer(cfg *config.TelephonyConfig, logger *zap.Logger) *Dialer {
	return &Dialer{
		apiURL:     cfg.APIURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type callResource struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// StartCall places a call to the given number. The provider fetches TwiML
// from webhookURL once the callee answers. Returns the provider call id.
func (d *Dialer) StartCall(ctx context.Context, toNumber, webhookURL string) (string, error) {
	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", d.fromNumber)
	form.Set("Url", webhookURL)
	form.Set("Method", http.MethodPost)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", d.apiURL, d.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating dial request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.accountSID, d.authToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", apperrors.TelephonyError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.TelephonyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.TelephonyError(fmt.Errorf("dial API returned status %d: %s", resp.StatusCode, truncateBody(body)))
	}

	var call callResource
	if err := json.Unmarshal(body, &call); err != nil {
		return "", apperrors.TelephonyError(fmt.Errorf("parsing dial response: %w", err))
	}
	if call.SID == "" {
		return "", apperrors.TelephonyError(fmt.Errorf("dial response missing call sid"))
	}

	d.logger.Info("outbound call started",
		zap.String("call_sid", call.SID),
		zap.String("status", call.Status),
	)

	return call.SID, nil
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
