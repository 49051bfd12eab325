// Package telephony handles the telephony provider boundary: webhook
// parsing and validation, TwiML response building, and outbound dialing.
package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
)

// Verb structs marshal to TwiML. Only the verbs this application emits are
// modeled.

// Say speaks text with the provider's built-in voice. Used as the fallback
// when synthesis is unavailable.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Play streams a synthesized audio clip.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Pause waits before the next verb.
type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Redirect re-enters the webhook flow at the given URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Gather collects caller speech while optionally playing a prompt inside
// it, which is what makes barge-in work: the caller can interrupt.
type Gather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr"`
	Action              string   `xml:"action,attr"`
	Language            string   `xml:"language,attr"`
	SpeechTimeout       string   `xml:"speechTimeout,attr"`
	Timeout             int      `xml:"timeout,attr"`
	SpeechModel         string   `xml:"speechModel,attr"`
	BargeIn             bool     `xml:"bargeIn,attr"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr"`
	ProfanityFilter     bool     `xml:"profanityFilter,attr"`
	Enhanced            bool     `xml:"enhanced,attr"`
	Hints               string   `xml:"hints,attr,omitempty"`

	Play *Play `xml:",omitempty"`
	Say  *Say  `xml:",omitempty"`
}

// NewGather returns a Gather tuned for short phone-call turns: one second
// of trailing silence ends the speech capture, eight seconds of total
// silence triggers the empty-result action.
func NewGather(action, language string) Gather {
	return Gather{
		Input:               "speech",
		Action:              action,
		Language:            language,
		SpeechTimeout:       "1",
		Timeout:             8,
		SpeechModel:         "phone_call",
		BargeIn:             true,
		ActionOnEmptyResult: true,
		ProfanityFilter:     false,
		Enhanced:            true,
	}
}

// Response accumulates TwiML verbs in order.
type Response struct {
	verbs []any
}

// NewResponse creates an empty TwiML response.
func NewResponse() *Response {
	return &Response{}
}

// Gather appends a Gather verb.
func (r *Response) Gather(g Gather) *Response {
	r.verbs = append(r.verbs, g)
	return r
}

// Say appends a Say verb.
func (r *Response) Say(text, language string) *Response {
	r.verbs = append(r.verbs, Say{Text: text, Language: language})
	return r
}

// Play appends a Play verb.
func (r *Response) Play(url string) *Response {
	r.verbs = append(r.verbs, Play{URL: url})
	return r
}

// Pause appends a Pause verb.
func (r *Response) Pause(seconds int) *Response {
	r.verbs = append(r.verbs, Pause{Length: seconds})
	return r
}

// Redirect appends a Redirect verb.
func (r *Response) Redirect(url string) *Response {
	r.verbs = append(r.verbs, Redirect{URL: url})
	return r
}

// Hangup appends a Hangup verb.
func (r *Response) Hangup() *Response {
	r.verbs = append(r.verbs, Hangup{})
	return r
}

// Render serializes the response as a TwiML document.
func (r *Response) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<Response>")

	for _, verb := range r.verbs {
		out, err := xml.Marshal(verb)
		if err != nil {
			return nil, fmt.Errorf("marshaling TwiML verb: %w", err)
		}
		buf.Write(out)
	}

	buf.WriteString("</Response>")
	return buf.Bytes(), nil
}

// Write renders the response and writes it with the TwiML content type.
func (r *Response) Write(w http.ResponseWriter) error {
	body, err := r.Render()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, err = w.Write(body)
	return err
}
