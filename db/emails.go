package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Email is a stored message. TextBody and HTMLBody are nil when the source
// message carried no such part; ToAddress is empty when the destination
// could not be resolved.
type Email struct {
	ID          int64     `json:"id"`
	MessageID   string    `json:"message_id"`
	FromAddress string    `json:"from_address"`
	ToAddress   string    `json:"to_address"`
	Subject     string    `json:"subject"`
	TextBody    *string   `json:"text_body"`
	HTMLBody    *string   `json:"html_body"`
	ReceivedAt  time.Time `json:"received_at"`
}

const emailColumns = "id, message_id, from_address, to_address, subject, text_body, html_body, received_at"

// InsertEmail stores a message, keyed by its message id. It returns false
// when a row with the same message id already exists; at-least-once upstream
// delivery makes that an expected outcome, not an error.
func (db *Database) InsertEmail(ctx context.Context, email *Email) (bool, error) {
	receivedAt := email.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO emails (message_id, from_address, to_address, subject, text_body, html_body, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING`,
		email.MessageID, email.FromAddress, email.ToAddress, email.Subject,
		email.TextBody, email.HTMLBody, receivedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert email %s: %w", email.MessageID, err)
	}

	return tag.RowsAffected() == 1, nil
}

// inboxQuery builds the SELECT for one inbox. The address predicate must
// bind the whole local part: a bare substring match for alice would also
// pull in mail addressed to malice. to_address is either a single address
// or several joined with ", " (the resolver's multi-recipient fallback), so
// each candidate address matches exactly, or at a ", " boundary within the
// list.
func inboxQuery(localPart string, domains []string, excludedSender string) (string, []any) {
	var conds []string
	var args []any

	arg := func(v string) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, domain := range domains {
		addr := localPart + "@" + domain
		conds = append(conds,
			fmt.Sprintf("to_address = %s", arg(addr)),
			fmt.Sprintf("to_address LIKE %s", arg(addr+",%")),
			fmt.Sprintf("to_address LIKE %s", arg("%, "+addr)),
			fmt.Sprintf("to_address LIKE %s", arg("%, "+addr+",%")),
		)
	}
	conds = append(conds, "to_address = ''")

	query := fmt.Sprintf("SELECT %s FROM emails WHERE (%s)", emailColumns, strings.Join(conds, " OR "))

	if excludedSender != "" {
		query += fmt.Sprintf(" AND from_address NOT LIKE %s", arg("%"+excludedSender+"%"))
	}

	query += " ORDER BY received_at DESC"
	return query, args
}

// ListEmailsForAddress returns every stored message addressed to localPart
// under any of the served domains, newest first. Messages whose destination
// could not be resolved (empty to_address) are included so unresolved mail
// is never silently lost, and mail from the excluded system sender is
// hidden from every inbox.
func (db *Database) ListEmailsForAddress(ctx context.Context, localPart string, domains []string, excludedSender string) ([]Email, error) {
	query, args := inboxQuery(localPart, domains, excludedSender)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails for %q: %w", localPart, err)
	}
	defer rows.Close()

	var emails []Email
	for rows.Next() {
		var e Email
		if err := rows.Scan(&e.ID, &e.MessageID, &e.FromAddress, &e.ToAddress,
			&e.Subject, &e.TextBody, &e.HTMLBody, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read email rows: %w", err)
	}

	return emails, nil
}

// DeleteEmailsOlderThan removes all messages whose received_at precedes
// now-age and returns the number of rows deleted.
func (db *Database) DeleteEmailsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	tag, err := db.Pool.Exec(ctx, "DELETE FROM emails WHERE received_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete emails older than %v: %w", age, err)
	}
	return tag.RowsAffected(), nil
}
