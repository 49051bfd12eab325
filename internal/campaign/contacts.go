// Package campaign runs outbound cold-call campaigns: it loads a contact
// list, paces dials inside polite calling hours, and hands each answered
// call to the webhook server through the provider.
package campaign

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lososs/callagent/internal/validation"
)

// Contact is one person or business to call.
type Contact struct {
	Name    string
	Phone   string
	Company string
	Email   string
}

// LoadContacts reads contacts from a CSV file with a name,phone,company,email
// header. Column order is free, extra columns are ignored. Rows with a
// missing or unusable phone number are skipped, not fatal.
func LoadContacts(path string) ([]Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening contacts file: %w", err)
	}
	defer f.Close()

	return ParseContacts(f)
}

// ParseContacts reads CSV contact rows from r.
func ParseContacts(r io.Reader) ([]Contact, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading contacts header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["phone"]; !ok {
		return nil, fmt.Errorf("contacts file has no phone column")
	}

	var contacts []Contact
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading contacts row: %w", err)
		}

		contact := Contact{
			Name:    field(row, cols, "name"),
			Phone:   validation.SanitizePhoneNumber(field(row, cols, "phone")),
			Company: field(row, cols, "company"),
			Email:   field(row, cols, "email"),
		}

		v := validation.New()
		if !v.Required("phone", contact.Phone) || !v.PhoneNumber("phone", contact.Phone) {
			continue
		}
		contacts = append(contacts, contact)
	}

	return contacts, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
