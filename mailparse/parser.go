// Package mailparse normalizes raw RFC 5322 messages into the flat shape
// the ingestion pipeline stores.
package mailparse

import (
	"io"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is a parsed inbound message. MessageID is empty when the source
// lacks one; Date is zero when the Date header is missing or unusable.
type Message struct {
	MessageID string
	// From is the decoded From header as display text; it may carry a
	// display name alongside the address.
	From string
	// To holds the structured recipient addresses; ToText is the decoded
	// raw header value kept as a fallback when none parse.
	To     []string
	ToText string

	Subject  string
	TextBody string
	HTMLBody string
	Date     time.Time

	// Header exposes case-insensitive lookup of the full header block for
	// the forwarding-header probe.
	Header mail.Header
}

// Parse reads one message from r. A malformed body part truncates body
// extraction but does not fail the parse; only an unreadable header block
// does.
func Parse(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}

	header := mr.Header
	msg := &Message{Header: header}

	if id, err := header.MessageID(); err == nil {
		msg.MessageID = id
	}
	if from, err := header.Text("From"); err == nil {
		msg.From = from
	} else {
		msg.From = header.Get("From")
	}
	if subject, err := header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = header.Get("Subject")
	}
	if date, err := header.Date(); err == nil {
		msg.Date = date
	}

	if toList, err := header.AddressList("To"); err == nil {
		for _, addr := range toList {
			msg.To = append(msg.To, addr.Address)
		}
	}
	if toText, err := header.Text("To"); err == nil {
		msg.ToText = toText
	} else {
		msg.ToText = header.Get("To")
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			// Keep whatever was extracted so far; the headers alone are
			// enough to store the message.
			break
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}

		switch contentType {
		case "text/plain":
			if msg.TextBody == "" {
				if body, err := io.ReadAll(p.Body); err == nil {
					msg.TextBody = string(body)
				}
			}
		case "text/html":
			if msg.HTMLBody == "" {
				if body, err := io.ReadAll(p.Body); err == nil {
					msg.HTMLBody = string(body)
				}
			}
		}
	}

	return msg, nil
}
