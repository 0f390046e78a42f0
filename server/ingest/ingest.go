// Package ingest turns raw inbound messages into stored Email records:
// parse, resolve the destination inbox, then a deduplicated insert. Both
// the IMAP source and the optional SMTP sink funnel through it.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/k3a/html2text"

	"github.com/inboxd/inboxd/db"
	"github.com/inboxd/inboxd/logger"
	"github.com/inboxd/inboxd/mailparse"
	"github.com/inboxd/inboxd/pkg/metrics"
	"github.com/inboxd/inboxd/resolver"
)

// EmailStore is the subset of the message store the ingestor needs.
type EmailStore interface {
	InsertEmail(ctx context.Context, email *db.Email) (bool, error)
}

type Ingestor struct {
	store    EmailStore
	resolver *resolver.Resolver
	source   string // metrics label: "imap" or "smtp"
}

func New(store EmailStore, res *resolver.Resolver, source string) *Ingestor {
	return &Ingestor{
		store:    store,
		resolver: res,
		source:   source,
	}
}

// IngestRaw parses one raw message and stores it. envelopeTo, when
// non-empty, overrides destination resolution (the SMTP sink trusts its
// envelope recipients). It returns whether a new row was inserted; a
// duplicate message id reports false with no error.
func (in *Ingestor) IngestRaw(ctx context.Context, raw io.Reader, envelopeTo string) (bool, error) {
	msg, err := mailparse.Parse(raw)
	if err != nil {
		metrics.MessagesFailed.WithLabelValues(in.source, "parse").Inc()
		return false, fmt.Errorf("failed to parse message: %w", err)
	}

	email := in.buildEmail(msg, envelopeTo)

	inserted, err := in.store.InsertEmail(ctx, email)
	if err != nil {
		metrics.MessagesFailed.WithLabelValues(in.source, "store").Inc()
		return false, err
	}

	if inserted {
		metrics.MessagesIngested.WithLabelValues(in.source).Inc()
		logger.Info("ingest: stored message",
			"source", in.source, "subject", email.Subject, "message_id", email.MessageID, "to", email.ToAddress)
	} else {
		metrics.MessagesDuplicate.WithLabelValues(in.source).Inc()
		logger.Debug("ingest: duplicate message skipped",
			"source", in.source, "message_id", email.MessageID)
	}

	return inserted, nil
}

func (in *Ingestor) buildEmail(msg *mailparse.Message, envelopeTo string) *db.Email {
	messageID := msg.MessageID
	if messageID == "" {
		// Dedup must never fail on a missing id.
		messageID = "no-id-" + uuid.New().String()
	}

	from := msg.From
	if from == "" {
		from = "unknown"
	}

	to := envelopeTo
	if to == "" {
		to = in.resolver.Resolve(&msg.Header, msg.To, msg.ToText)
	}
	if to == "" {
		metrics.UnresolvedDestinations.Inc()
	}

	subject := msg.Subject
	if subject == "" {
		subject = "(No Subject)"
	}

	text := msg.TextBody
	if text == "" && msg.HTMLBody != "" {
		// HTML-only messages still get a text body for preview consumers.
		text = html2text.HTML2Text(msg.HTMLBody)
	}

	email := &db.Email{
		MessageID:   messageID,
		FromAddress: from,
		ToAddress:   to,
		Subject:     subject,
		ReceivedAt:  msg.Date,
	}
	if text != "" {
		email.TextBody = &text
	}
	if msg.HTMLBody != "" {
		html := msg.HTMLBody
		email.HTMLBody = &html
	}

	return email
}
