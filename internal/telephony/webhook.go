package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/lososs/callagent/internal/errors"
	"github.com/lososs/callagent/internal/validation"
)

// Webhook holds the parsed fields of one provider webhook request.
type Webhook struct {
	CallSID      string
	From         string
	To           string
	CallStatus   string
	Direction    string
	SpeechResult string
	Confidence   float64
}

// ParseWebhook parses a form-encoded provider webhook. CallSid is the only
// required field; speech fields are absent on call-setup webhooks.
func ParseWebhook(r *http.Request) (*Webhook, error) {
	if err := r.ParseForm(); err != nil {
		return nil, apperrors.WebhookError("malformed webhook form body")
	}

	callSID := r.Form.Get("CallSid")
	if callSID == "" {
		return nil, apperrors.MissingField("CallSid")
	}

	wh := &Webhook{
		CallSID:      callSID,
		From:         r.Form.Get("From"),
		To:           r.Form.Get("To"),
		CallStatus:   r.Form.Get("CallStatus"),
		Direction:    r.Form.Get("Direction"),
		SpeechResult: r.Form.Get("SpeechResult"),
	}

	if raw := r.Form.Get("Confidence"); raw != "" {
		conf, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apperrors.InvalidFormat("Confidence", "float")
		}
		wh.Confidence = conf
	}

	v := validation.NewCallEventValidator()
	if errs := v.ValidateEvent(wh.CallSID, wh.From, wh.To, wh.CallStatus, wh.SpeechResult, wh.Confidence); errs.HasErrors() {
		return nil, apperrors.WebhookError(errs.Error())
	}

	return wh, nil
}

// Validator checks webhook signatures so only the provider can drive calls.
type Validator struct {
	authToken string
}

// NewValidator creates a Validator for the given auth token.
func NewValidator(authToken string) *Validator {
	return &Validator{authToken: authToken}
}

// Validate checks the X-Twilio-Signature header against the request. The
// expected signature is HMAC-SHA1 over the full URL followed by the sorted
// POST parameters, base64 encoded.
func (v *Validator) Validate(r *http.Request, publicURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	url := strings.TrimRight(publicURL, "/") + r.URL.RequestURI()
	expected := v.sign(url, r.PostForm)

	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

func (v *Validator) sign(url string, params map[string][]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		for _, val := range params[k] {
			b.WriteString(k)
			b.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
