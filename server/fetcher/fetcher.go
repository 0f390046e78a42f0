// Package fetcher owns the session with the upstream mailbox that all
// disposable-domain mail is forwarded into. One worker goroutine drives the
// whole lifecycle: connect, catch-up fetch, IDLE or polling, reconnect on
// failure. No other component opens a competing session.
package fetcher

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/inboxd/inboxd/config"
	"github.com/inboxd/inboxd/logger"
	"github.com/inboxd/inboxd/pkg/metrics"
	"github.com/inboxd/inboxd/server/ingest"
)

type Worker struct {
	cfg       config.IMAPSourceConfig
	ingestor  *ingest.Ingestor
	retention time.Duration

	authTimeout    time.Duration
	reconnectDelay time.Duration
	retryDelay     time.Duration
	pollInterval   time.Duration

	stopCh chan struct{}
}

// New creates the mailbox worker. The retention window doubles as the
// catch-up horizon: after (re)connecting, everything received since
// now-retention is fetched, so no message that could still be legally
// stored is missed.
func New(cfg config.IMAPSourceConfig, ingestor *ingest.Ingestor, retention time.Duration) (*Worker, error) {
	authTimeout, err := cfg.GetAuthTimeout()
	if err != nil {
		return nil, err
	}
	reconnectDelay, err := cfg.GetReconnectDelay()
	if err != nil {
		return nil, err
	}
	retryDelay, err := cfg.GetConnectRetryDelay()
	if err != nil {
		return nil, err
	}
	pollInterval, err := cfg.GetPollInterval()
	if err != nil {
		return nil, err
	}

	return &Worker{
		cfg:            cfg,
		ingestor:       ingestor,
		retention:      retention,
		authTimeout:    authTimeout,
		reconnectDelay: reconnectDelay,
		retryDelay:     retryDelay,
		pollInterval:   pollInterval,
		stopCh:         make(chan struct{}),
	}, nil
}

// Start runs the connection state machine in its own goroutine until the
// context is cancelled or Stop is called. The loop retries forever; a
// long-running service is expected to self-heal.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		logger.Info("IMAP: worker starting",
			"addr", w.cfg.Address(), "mailbox", w.cfg.Mailbox, "catchup_window", w.retention)
		for {
			delay, err := w.runSession(ctx)
			if ctx.Err() != nil || w.stopped() {
				logger.Info("IMAP: worker stopped")
				return
			}
			if err != nil {
				logger.Error("IMAP: session ended", "error", err, "reconnect_in", delay)
			}
			metrics.Reconnects.Inc()
			select {
			case <-ctx.Done():
				logger.Info("IMAP: worker stopped")
				return
			case <-w.stopCh:
				logger.Info("IMAP: worker stopped")
				return
			case <-time.After(delay):
			}
		}
	}()
}

// Stop signals the worker to terminate after the current operation.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) stopped() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// runSession performs one full connect-serve cycle and returns the delay to
// wait before the next attempt: the longer retry delay when the connection
// could not even be established, the short reconnect delay when an
// established session dropped.
func (w *Worker) runSession(ctx context.Context) (time.Duration, error) {
	c, err := w.connect()
	if err != nil {
		return w.retryDelay, err
	}
	defer func() {
		metrics.ConnectedState.Set(0)
		c.Logout()
	}()
	metrics.ConnectedState.Set(1)

	if _, err := c.Select(w.cfg.Mailbox, false); err != nil {
		return w.reconnectDelay, err
	}
	logger.Info("IMAP: connected", "addr", w.cfg.Address(), "mailbox", w.cfg.Mailbox)

	// Catch up on everything still inside the retention window.
	if err := w.fetchSince(ctx, c, "initial"); err != nil {
		return w.reconnectDelay, err
	}

	supportsIdle, err := c.Support("IDLE")
	if err != nil {
		return w.reconnectDelay, err
	}

	if supportsIdle {
		err = w.idleLoop(ctx, c)
	} else {
		logger.Info("IMAP: server does not support IDLE, polling", "interval", w.pollInterval)
		err = w.pollLoop(ctx, c)
	}
	return w.reconnectDelay, err
}

// connect dials and authenticates within the auth timeout.
func (w *Worker) connect() (*client.Client, error) {
	dialer := &net.Dialer{Timeout: w.authTimeout}

	var c *client.Client
	var err error
	if w.cfg.TLS {
		tlsConfig := &tls.Config{InsecureSkipVerify: w.cfg.InsecureSkipVerify}
		c, err = client.DialWithDialerTLS(dialer, w.cfg.Address(), tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, w.cfg.Address())
	}
	if err != nil {
		return nil, err
	}

	c.Timeout = w.authTimeout
	if err := c.Login(w.cfg.User, w.cfg.Password); err != nil {
		c.Logout()
		return nil, err
	}
	// The auth bound does not apply to long-lived IDLE reads.
	c.Timeout = 0

	return c, nil
}

// idleLoop blocks on server-pushed new-mail notifications and fetches on
// each one.
func (w *Worker) idleLoop(ctx context.Context, c *client.Client) error {
	updates := make(chan client.Update, 64)
	c.Updates = updates

	logger.Info("IMAP: listening for new mail (IDLE)")

	for {
		stop := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- c.Idle(stop, nil)
		}()

		var idleErr error
		newMail := false
		waiting := true
		for waiting {
			select {
			case <-ctx.Done():
				close(stop)
				<-done
				return ctx.Err()
			case <-w.stopCh:
				close(stop)
				<-done
				return nil
			case idleErr = <-done:
				waiting = false
			case update := <-updates:
				if _, ok := update.(*client.MailboxUpdate); ok {
					newMail = true
					close(stop)
					idleErr = <-done
					waiting = false
				}
			}
		}
		if idleErr != nil {
			return idleErr
		}

		if newMail {
			if err := w.fetchSince(ctx, c, "idle"); err != nil {
				return err
			}
		}

		// Drop updates that arrived while fetching; the next fetch covers
		// the full catch-up window anyway.
		for {
			select {
			case <-updates:
				continue
			default:
			}
			break
		}
	}
}

// pollLoop fetches on a fixed timer for servers without IDLE.
func (w *Worker) pollLoop(ctx context.Context, c *client.Client) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			if err := w.fetchSince(ctx, c, "poll"); err != nil {
				return err
			}
		}
	}
}

// fetchSince runs the shared fetch-and-ingest routine over every message
// received inside the catch-up window. A single message's parse or insert
// failure is logged and skipped; it never aborts the rest of the batch.
// Deduplicated inserts make re-fetching the full window harmless.
func (w *Worker) fetchSince(ctx context.Context, c *client.Client, trigger string) error {
	metrics.FetchRuns.WithLabelValues(trigger).Inc()

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-w.retention)

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	logger.Debug("IMAP: processing messages", "trigger", trigger, "count", len(uids))

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps the upstream \Seen flags untouched.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			logger.Warn("IMAP: message has no body section, skipping", "uid", msg.Uid)
			continue
		}
		if _, err := w.ingestor.IngestRaw(ctx, body, ""); err != nil {
			logger.Error("IMAP: failed to ingest message, skipping", "uid", msg.Uid, "error", err)
		}
	}

	return <-done
}
