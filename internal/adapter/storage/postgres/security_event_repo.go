package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"

	"github.com/google/uuid"
)

// SecurityEventRepo implements ports.SecurityEventRepository, the
// durable tier of the audit trail. Details are stored as JSONB.
type SecurityEventRepo struct {
	pool Pool
}

// NewSecurityEventRepo creates a new SecurityEventRepo.
func NewSecurityEventRepo(pool Pool) *SecurityEventRepo {
	return &SecurityEventRepo{pool: pool}
}

// Create inserts a security event.
func (r *SecurityEventRepo) Create(ctx context.Context, ev *domain.SecurityEvent) error {
	var detailsRaw []byte
	if ev.Details != nil {
		var err error
		detailsRaw, err = json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("marshaling event details: %w", err)
		}
	}

	query := `INSERT INTO security_events (id, subject_id, event_type, severity, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		ev.ID, ev.SubjectID, ev.Type, ev.Severity, detailsRaw, ev.IPAddress, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// ListBySubject fetches events for a subject since a point in time,
// newest first.
func (r *SecurityEventRepo) ListBySubject(ctx context.Context, subjectID uuid.UUID, since time.Time, limit int) ([]domain.SecurityEvent, error) {
	query := `SELECT id, subject_id, event_type, severity, details, ip_address, created_at
		FROM security_events
		WHERE subject_id = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, subjectID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		ev := domain.SecurityEvent{}
		var detailsRaw []byte
		err := rows.Scan(&ev.ID, &ev.SubjectID, &ev.Type, &ev.Severity, &detailsRaw, &ev.IPAddress, &ev.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan security event row: %w", err)
		}
		if len(detailsRaw) > 0 {
			if err := json.Unmarshal(detailsRaw, &ev.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling event details: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security event rows: %w", err)
	}
	return events, nil
}
