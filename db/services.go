package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/inboxd/inboxd/filter"
)

// ErrServiceNotFound is returned when a service lookup or update targets a
// row that does not exist.
var ErrServiceNotFound = errors.New("service not found")

// Service is a named routing rule. SubjectFilter keeps the stored
// "|"-delimited alternation format for compatibility; call Rule to get the
// parsed form.
type Service struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SenderFilter  string `json:"sender_filter"`
	SubjectFilter string `json:"subject_filter"`
}

// Rule parses the stored filter columns into the filter engine's form.
func (s *Service) Rule() filter.Rule {
	return filter.ParseRule(s.Name, s.SenderFilter, s.SubjectFilter)
}

// ListServices returns all services ordered by id.
func (db *Database) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, name, sender_filter, subject_filter FROM services ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.SenderFilter, &s.SubjectFilter); err != nil {
			return nil, fmt.Errorf("failed to scan service row: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read service rows: %w", err)
	}

	return services, nil
}

// GetServiceByName looks a service up by name, case-insensitively. Routing
// scopes are addressed by name rather than by fixed numeric id, so seed data
// and lookups cannot drift apart.
func (db *Database) GetServiceByName(ctx context.Context, name string) (*Service, error) {
	var s Service
	err := db.Pool.QueryRow(ctx,
		"SELECT id, name, sender_filter, subject_filter FROM services WHERE LOWER(name) = LOWER($1)",
		name).Scan(&s.ID, &s.Name, &s.SenderFilter, &s.SubjectFilter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to look up service %q: %w", name, err)
	}
	return &s, nil
}

// CreateService adds a new routing rule and returns its id.
func (db *Database) CreateService(ctx context.Context, name, senderFilter, subjectFilter string) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO services (name, sender_filter, subject_filter)
		VALUES ($1, $2, $3)
		RETURNING id`,
		name, senderFilter, subjectFilter).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create service %q: %w", name, err)
	}
	return id, nil
}

// UpdateServiceFilters replaces a service's sender and subject filters.
func (db *Database) UpdateServiceFilters(ctx context.Context, id int64, senderFilter, subjectFilter string) error {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE services SET sender_filter = $1, subject_filter = $2 WHERE id = $3",
		senderFilter, subjectFilter, id)
	if err != nil {
		return fmt.Errorf("failed to update service %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}
