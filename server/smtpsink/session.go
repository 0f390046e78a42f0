package smtpsink

import (
	"context"
	"io"
	"strings"

	"github.com/emersion/go-smtp"

	"github.com/inboxd/inboxd/logger"
)

type session struct {
	sink *Server
	from string
	to   []string
}

func (s *session) Mail(from string, opts *smtp.MailOptions) error {
	logger.Debug("SMTP: MAIL FROM", "from", from)
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, opts *smtp.RcptOptions) error {
	// Accept recipients outside the served domains with a warning rather
	// than rejecting; forwarding setups produce odd envelopes.
	if !s.sink.resolver.Served(to) {
		logger.Warn("SMTP: recipient outside served domains", "to", to)
	}
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	// The envelope recipients are authoritative for a directly delivered
	// message; the header probe is only needed for forwarded mail.
	envelopeTo := strings.Join(s.to, ", ")

	if _, err := s.sink.ingestor.IngestRaw(context.Background(), r, envelopeTo); err != nil {
		logger.Error("SMTP: failed to ingest message", "from", s.from, "error", err)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Error processing message",
		}
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}
