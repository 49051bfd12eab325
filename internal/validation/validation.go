// Package validation provides input validation for webhook payloads and
// contact lists.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error codes for validation failures.
const (
	CodeRequired      = "required"
	CodeInvalidFormat = "invalid_format"
	CodeTooLong       = "too_long"
	CodeInvalidValue  = "invalid_value"
	CodeMalicious     = "malicious_content"
)

// Validator accumulates validation errors across field checks.
type Validator struct {
	errors ValidationErrors
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// Errors returns all accumulated validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// IsValid returns true if no validation errors occurred.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message, code string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

// Required validates that a string field is not empty.
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required", CodeRequired)
		return false
	}
	return true
}

// MaxLength validates string length doesn't exceed maximum.
func (v *Validator) MaxLength(field, value string, maxLen int) bool {
	if utf8.RuneCountInString(value) > maxLen {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", maxLen), CodeTooLong)
		return false
	}
	return true
}

// phoneRegex matches international phone numbers.
var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// PhoneNumber validates a phone number format.
func (v *Validator) PhoneNumber(field, value string) bool {
	if value == "" {
		return true // Use Required() separately if needed
	}
	// Remove common formatting characters
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(value)
	if !phoneRegex.MatchString(cleaned) {
		v.AddError(field, "must be a valid phone number in E.164 format", CodeInvalidFormat)
		return false
	}
	return true
}

// OneOf validates that value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) bool {
	if value == "" {
		return true
	}
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")), CodeInvalidValue)
	return false
}

// SafeString validates a string is safe for display (no control characters
// except newlines and tabs).
func (v *Validator) SafeString(field, value string) bool {
	for _, r := range value {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			v.AddError(field, "contains invalid control characters", CodeMalicious)
			return false
		}
	}
	return true
}

// CallEventValidator checks the fields of one provider webhook before they
// reach a live call.
type CallEventValidator struct {
	*Validator
}

// NewCallEventValidator creates a CallEvent validator.
func NewCallEventValidator() *CallEventValidator {
	return &CallEventValidator{
		Validator: New(),
	}
}

// ValidateCallID validates the provider call ID.
func (v *CallEventValidator) ValidateCallID(callID string) {
	v.Required("CallSid", callID)
	v.MaxLength("CallSid", callID, 64)
	v.SafeString("CallSid", callID)
}

// ValidatePhoneNumbers validates the caller and callee numbers.
func (v *CallEventValidator) ValidatePhoneNumbers(from, to string) {
	v.PhoneNumber("From", from)
	v.PhoneNumber("To", to)
}

// ValidateStatus validates the provider call status.
func (v *CallEventValidator) ValidateStatus(status string) {
	allowed := []string{
		"queued", "initiated", "ringing", "in-progress",
		"completed", "busy", "failed", "no-answer", "canceled",
	}
	v.OneOf("CallStatus", strings.ToLower(status), allowed)
}

// ValidateSpeech validates the transcribed utterance.
func (v *CallEventValidator) ValidateSpeech(speech string) {
	v.MaxLength("SpeechResult", speech, 10000)
	v.SafeString("SpeechResult", speech)
}

// ValidateConfidence validates the recognition confidence.
func (v *CallEventValidator) ValidateConfidence(confidence float64) {
	if confidence < 0 || confidence > 1 {
		v.AddError("Confidence", "must be between 0 and 1", CodeInvalidValue)
	}
}

// ValidateEvent runs every webhook field check and returns the errors.
func (v *CallEventValidator) ValidateEvent(callID, from, to, status, speech string, confidence float64) ValidationErrors {
	v.ValidateCallID(callID)
	v.ValidatePhoneNumbers(from, to)
	v.ValidateStatus(status)
	v.ValidateSpeech(speech)
	v.ValidateConfidence(confidence)
	return v.Errors()
}

// SanitizePhoneNumber normalizes a phone number to E.164-ish format.
func SanitizePhoneNumber(phone string) string {
	// Remove all non-digit characters except leading +
	hasPlus := strings.HasPrefix(phone, "+")
	digits := strings.Builder{}
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	result := digits.String()
	if hasPlus && result != "" {
		return "+" + result
	}
	return result
}
