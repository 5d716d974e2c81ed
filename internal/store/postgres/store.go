// Package postgres implements store.TicketStore over PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	stderrors "ticketflow/internal/common/errors"
	"ticketflow/internal/models"
	"ticketflow/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.TicketStore = (*Store)(nil)

const ticketColumns = `ticket_id, recipient, display_number, org_id, branch_id, service_id,
	status, created_at, scheduled_at, notification_level, last_notified_at, assigned_server`

func scanTicket(row interface{ Scan(...interface{}) error }) (*models.Ticket, error) {
	var t models.Ticket
	var status string
	err := row.Scan(
		&t.ID, &t.Recipient, &t.DisplayNumber, &t.OrgID, &t.BranchID, &t.ServiceID,
		&status, &t.CreatedAt, &t.ScheduledAt, &t.NotificationLevel, &t.LastNotifiedAt,
		&t.AssignedServer,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.Status(status)
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *models.Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Recipient, t.DisplayNumber, t.OrgID, t.BranchID, t.ServiceID,
		string(t.Status), t.CreatedAt, t.ScheduledAt, t.NotificationLevel,
		t.LastNotifiedAt, t.AssignedServer,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("create_ticket", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1`, id)

	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stderrors.NewTicketNotFoundError(id)
		}
		return nil, stderrors.NewQueryExecutionFailedError("get_ticket", err)
	}
	return t, nil
}

func (s *Store) ListWaitingByPartition(ctx context.Context, serviceID, branchID string) ([]*models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE service_id = $1 AND branch_id = $2 AND status = 'waiting'
		ORDER BY created_at ASC, ticket_id ASC`, serviceID, branchID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_waiting_partition", err)
	}
	defer rows.Close()

	return collectTickets(rows, "list_waiting_partition")
}

func (s *Store) ListWaitingByScope(ctx context.Context, scope store.Scope) ([]*models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = 'waiting'`
	args := []interface{}{}

	if scope.OrgID != "" {
		args = append(args, scope.OrgID)
		query += ` AND org_id = $1`
	}
	if scope.BranchID != "" {
		args = append(args, scope.BranchID)
		if len(args) == 2 {
			query += ` AND branch_id = $2`
		} else {
			query += ` AND branch_id = $1`
		}
	}
	query += ` ORDER BY created_at ASC, ticket_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_waiting_scope", err)
	}
	defer rows.Close()

	return collectTickets(rows, "list_waiting_scope")
}

func (s *Store) ListScheduledWaiting(ctx context.Context) ([]*models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'waiting' AND scheduled_at IS NOT NULL
		ORDER BY scheduled_at ASC, ticket_id ASC`)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_scheduled_waiting", err)
	}
	defer rows.Close()

	return collectTickets(rows, "list_scheduled_waiting")
}

func collectTickets(rows *sql.Rows, operation string) ([]*models.Ticket, error) {
	var out []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError(operation, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError(operation, err)
	}
	return out, nil
}

// CASStatus relies on a conditional UPDATE: the row only changes when it is
// still in the expected status at write time, so exactly one concurrent
// caller can win a given transition.
func (s *Store) CASStatus(ctx context.Context, id string, expected, next models.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status = $3, last_notified_at = $4
		WHERE ticket_id = $1 AND status = $2`,
		id, string(expected), string(next), time.Now().UTC(),
	)
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("cas_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, stderrors.NewQueryExecutionFailedError("cas_status", err)
	}
	return n == 1, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status models.Status, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET status = $2, last_notified_at = $3
		WHERE ticket_id = $1`,
		id, string(status), at,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("update_status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("update_status", err)
	}
	if n == 0 {
		return stderrors.NewTicketNotFoundError(id)
	}
	return nil
}

// SetNotificationLevel writes level and timestamp in one statement; the
// notification_level < $2 guard keeps the level monotonic even if two sweeps
// ever raced.
func (s *Store) SetNotificationLevel(ctx context.Context, id string, level int, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET notification_level = $2, last_notified_at = $3
		WHERE ticket_id = $1 AND notification_level < $2`,
		id, level, at,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("set_notification_level", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return stderrors.NewQueryExecutionFailedError("set_notification_level", err)
	}
	return nil
}

func (s *Store) Reassign(ctx context.Context, id string, newServiceID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET service_id = $2, status = 'waiting', assigned_server = NULL
		WHERE ticket_id = $1`,
		id, newServiceID,
	)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("reassign", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("reassign", err)
	}
	if n == 0 {
		return stderrors.NewTicketNotFoundError(id)
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, serviceID string) (*models.Service, error) {
	var svc models.Service
	err := s.db.QueryRowContext(ctx, `
		SELECT service_id, org_id, branch_id, name, estimated_duration_minutes
		FROM services
		WHERE service_id = $1`, serviceID).
		Scan(&svc.ID, &svc.OrgID, &svc.BranchID, &svc.Name, &svc.EstimatedDurationMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stderrors.NewServiceNotFoundError(serviceID)
		}
		return nil, stderrors.NewQueryExecutionFailedError("get_service", err)
	}
	return &svc, nil
}

func (s *Store) ServiceDuration(ctx context.Context, serviceID string) (int, error) {
	var minutes int
	err := s.db.QueryRowContext(ctx, `
		SELECT estimated_duration_minutes
		FROM services
		WHERE service_id = $1`, serviceID).Scan(&minutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultServiceDurationMinutes, nil
		}
		return 0, stderrors.NewQueryExecutionFailedError("service_duration", err)
	}
	if minutes <= 0 {
		return models.DefaultServiceDurationMinutes, nil
	}
	return minutes, nil
}

func (s *Store) CountByRecipientSince(ctx context.Context, recipient string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM tickets
		WHERE recipient = $1 AND created_at >= $2`, recipient, since).Scan(&n)
	if err != nil {
		return 0, stderrors.NewQueryExecutionFailedError("count_by_recipient", err)
	}
	return n, nil
}
