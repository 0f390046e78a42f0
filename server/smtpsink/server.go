// Package smtpsink is an optional direct-SMTP ingestion endpoint. The IMAP
// source is the primary path; this sink exists for installations whose MX
// points straight at inboxd. It accepts mail without authentication and
// funnels everything through the shared ingest pipeline.
package smtpsink

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/inboxd/inboxd/config"
	"github.com/inboxd/inboxd/logger"
	"github.com/inboxd/inboxd/resolver"
	"github.com/inboxd/inboxd/server/ingest"
)

type Server struct {
	cfg      config.SMTPSinkConfig
	ingestor *ingest.Ingestor
	resolver *resolver.Resolver
	server   *smtp.Server
}

func New(cfg config.SMTPSinkConfig, ingestor *ingest.Ingestor, res *resolver.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		ingestor: ingestor,
		resolver: res,
	}

	srv := smtp.NewServer(&backend{sink: s})
	srv.Addr = cfg.Addr
	srv.Domain = cfg.Hostname
	srv.MaxMessageBytes = cfg.MaxMessageSize
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 60 * time.Second
	s.server = srv

	return s
}

// Start runs the SMTP listener until the context is cancelled. Errors other
// than a clean shutdown are sent to errChan.
func Start(ctx context.Context, cfg config.SMTPSinkConfig, ingestor *ingest.Ingestor, res *resolver.Resolver, errChan chan error) {
	s := New(cfg, ingestor, res)

	go func() {
		<-ctx.Done()
		logger.Info("SMTP: shutting down listener")
		s.server.Close()
	}()

	logger.Info("SMTP: starting listener", "addr", cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && ctx.Err() == nil {
		errChan <- fmt.Errorf("SMTP listener failed: %w", err)
	}
}

type backend struct {
	sink *Server
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	logger.Debug("SMTP: connection", "remote", c.Conn().RemoteAddr())
	return &session{sink: b.sink}, nil
}
