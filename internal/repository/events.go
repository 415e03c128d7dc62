package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

const eventColumns = `id, creator_id, name, description, location, date, capacity, capacity_left, created_at`

const eventColumnsQualified = `e.id, e.creator_id, e.name, e.description, e.location, e.date, e.capacity, e.capacity_left, e.created_at`

const eventCreatorFK = "events_creator_id_fkey"

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.CreatorID, &e.Name, &e.Description, &e.Location,
		&e.Date, &e.Capacity, &e.CapacityLeft, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db       DB
	tx       *Transactor
	capacity CapacityStore
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db DB, tx *Transactor) *EventRepository {
	return &EventRepository{db: db, tx: tx}
}

// Create inserts a new event with capacity_left equal to capacity.
func (r *EventRepository) Create(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:           uuid.New().String(),
		CreatorID:    creatorID,
		Name:         req.Name,
		Description:  req.Description,
		Location:     req.Location,
		Date:         req.Date.UTC(),
		Capacity:     req.Capacity,
		CapacityLeft: req.Capacity,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.CreatorID, event.Name, event.Description, event.Location,
		event.Date, event.Capacity, event.CapacityLeft, event.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err, eventCreatorFK) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// List returns events ordered by date ascending, narrowed by filter.
func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("date < $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}

	sql := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY date ASC, id ASC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// Update applies an administrative edit under the event's row lock. A
// capacity change keeps capacity_left = capacity - reservations.
func (r *EventRepository) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var updated *model.Event
	err := r.tx.WithinTx(ctx, func(tx pgx.Tx) error {
		c, err := r.capacity.Lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Capacity != nil && *req.Capacity != c.Capacity {
			if err := r.capacity.Resize(ctx, tx, c, *req.Capacity); err != nil {
				return err
			}
		}

		var date *time.Time
		if req.Date != nil {
			d := req.Date.UTC()
			date = &d
		}
		updated, err = scanEvent(tx.QueryRow(ctx,
			`UPDATE events SET
				name        = COALESCE($2, name),
				description = COALESCE($3, description),
				location    = COALESCE($4, location),
				date        = COALESCE($5, date)
			 WHERE id = $1
			 RETURNING `+eventColumns,
			id, req.Name, req.Description, req.Location, date,
		))
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an event; its reservations go with it through ON DELETE
// CASCADE, so no capacity bookkeeping is needed.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
