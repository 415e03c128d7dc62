package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

func expectInsert(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(sqlRe("INSERT INTO reservations (id, user_id, event_id, created_at)")).
		WithArgs(pgxmock.AnyArg(), userID, eventID, fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "event_id", "created_at"}).
			AddRow(createdID, userID, eventID, fixedNow))
}

func expectDecrement(mock pgxmock.PgxPoolIface, left int) {
	mock.ExpectQuery(sqlRe("SET capacity_left = capacity_left - 1 WHERE id = $1 AND capacity_left > 0")).
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"capacity_left"}).AddRow(left))
}

func TestCreateReservation(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	expectLockEvent(mock, eventID, futureDate, 5, 2)
	expectExists(mock, userID, eventID, false)
	expectInsert(mock)
	expectDecrement(mock, 1)
	mock.ExpectCommit()

	res, err := repo.Create(context.Background(), userID, eventID)
	require.NoError(t, err)
	assert.Equal(t, createdID, res.ID)
	assert.Equal(t, userID, res.UserID)
	assert.Equal(t, eventID, res.EventID)
	assert.Equal(t, fixedNow, res.CreatedAt)
}

func TestCreateReservationFailuresRollBack(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "unknown event",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(sqlRe("FROM events WHERE id = $1 FOR UPDATE")).
					WithArgs(eventID).
					WillReturnRows(pgxmock.NewRows([]string{"id", "creator_id", "date", "capacity", "capacity_left"}))
			},
			wantErr: ErrNotFound,
		},
		{
			name: "no capacity left",
			setup: func(mock pgxmock.PgxPoolIface) {
				expectLockEvent(mock, eventID, futureDate, 5, 0)
			},
			wantErr: ErrCapacityExhausted,
		},
		{
			name: "existing reservation",
			setup: func(mock pgxmock.PgxPoolIface) {
				expectLockEvent(mock, eventID, futureDate, 5, 3)
				expectExists(mock, userID, eventID, true)
			},
			wantErr: ErrDuplicateReservation,
		},
		{
			name: "unique constraint wins the race",
			setup: func(mock pgxmock.PgxPoolIface) {
				expectLockEvent(mock, eventID, futureDate, 5, 3)
				expectExists(mock, userID, eventID, false)
				mock.ExpectQuery(sqlRe("INSERT INTO reservations")).
					WithArgs(pgxmock.AnyArg(), userID, eventID, fixedNow).
					WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "event_id", "created_at"}))
			},
			wantErr: ErrDuplicateReservation,
		},
		{
			name: "unique violation reported by the database",
			setup: func(mock pgxmock.PgxPoolIface) {
				expectLockEvent(mock, eventID, futureDate, 5, 3)
				expectExists(mock, userID, eventID, false)
				mock.ExpectQuery(sqlRe("INSERT INTO reservations")).
					WithArgs(pgxmock.AnyArg(), userID, eventID, fixedNow).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: reservationKey})
			},
			wantErr: ErrDuplicateReservation,
		},
		{
			name: "user row removed before the insert",
			setup: func(mock pgxmock.PgxPoolIface) {
				expectLockEvent(mock, eventID, futureDate, 5, 3)
				expectExists(mock, userID, eventID, false)
				mock.ExpectQuery(sqlRe("INSERT INTO reservations")).
					WithArgs(pgxmock.AnyArg(), userID, eventID, fixedNow).
					WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: reservationUserFK})
			},
			wantErr: ErrUserNotFound,
		},
		{
			name: "guarded decrement finds no slot",
			setup: func(mock pgxmock.PgxPoolIface) {
				expectLockEvent(mock, eventID, futureDate, 5, 1)
				expectExists(mock, userID, eventID, false)
				expectInsert(mock)
				mock.ExpectQuery(sqlRe("SET capacity_left = capacity_left - 1")).
					WithArgs(eventID).
					WillReturnRows(pgxmock.NewRows([]string{"capacity_left"}))
			},
			wantErr: ErrCapacityExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newReservationRepo(t)
			expectBegin(mock)
			tt.setup(mock)
			mock.ExpectRollback()

			res, err := repo.Create(context.Background(), userID, eventID)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateReservationRetriesSerializationFailure(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	mock.ExpectQuery(sqlRe("FROM events WHERE id = $1 FOR UPDATE")).
		WithArgs(eventID).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	expectBegin(mock)
	expectLockEvent(mock, eventID, futureDate, 5, 5)
	expectExists(mock, userID, eventID, false)
	expectInsert(mock)
	expectDecrement(mock, 4)
	mock.ExpectCommit()

	res, err := repo.Create(context.Background(), userID, eventID)
	require.NoError(t, err)
	assert.Equal(t, createdID, res.ID)
}

func TestCreateReservationGivesUpAfterBoundedRetries(t *testing.T) {
	mock, repo := newReservationRepo(t)

	for range 3 {
		expectBegin(mock)
		mock.ExpectQuery(sqlRe("FROM events WHERE id = $1 FOR UPDATE")).
			WithArgs(eventID).
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	_, err := repo.Create(context.Background(), userID, eventID)
	require.ErrorIs(t, err, ErrTransactionConflict)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40P01", pgErr.Code)
}

func TestCancelReservation(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	expectLockEvent(mock, eventID, futureDate, 5, 2)
	expectExists(mock, userID, eventID, true)
	mock.ExpectExec(sqlRe("DELETE FROM reservations WHERE user_id = $1 AND event_id = $2")).
		WithArgs(userID, eventID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(sqlRe("SET capacity_left = LEAST(capacity, capacity_left + $2)")).
		WithArgs(eventID, 1).
		WillReturnRows(pgxmock.NewRows([]string{"capacity_left"}).AddRow(3))
	mock.ExpectCommit()

	out, err := repo.Cancel(context.Background(), userID, eventID)
	require.NoError(t, err)
	assert.Equal(t, eventID, out.EventID)
	assert.Equal(t, 3, out.CapacityLeft)
}

func TestCancelReservationFailures(t *testing.T) {
	t.Run("missing reservation", func(t *testing.T) {
		mock, repo := newReservationRepo(t)
		expectBegin(mock)
		expectLockEvent(mock, eventID, futureDate, 5, 5)
		expectExists(mock, userID, eventID, false)
		mock.ExpectRollback()

		_, err := repo.Cancel(context.Background(), userID, eventID)
		assert.ErrorIs(t, err, ErrReservationNotFound)
	})

	t.Run("past event", func(t *testing.T) {
		mock, repo := newReservationRepo(t)
		expectBegin(mock)
		expectLockEvent(mock, eventID, pastDate, 5, 2)
		expectExists(mock, userID, eventID, true)
		mock.ExpectRollback()

		_, err := repo.Cancel(context.Background(), userID, eventID)
		assert.ErrorIs(t, err, ErrPastEvent)
	})

	t.Run("unknown event", func(t *testing.T) {
		mock, repo := newReservationRepo(t)
		expectBegin(mock)
		mock.ExpectQuery(sqlRe("FROM events WHERE id = $1 FOR UPDATE")).
			WithArgs(eventID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "creator_id", "date", "capacity", "capacity_left"}))
		mock.ExpectRollback()

		_, err := repo.Cancel(context.Background(), userID, eventID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClearEventResetsCapacity(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	expectLockEvent(mock, eventID, futureDate, 5, 1)
	mock.ExpectExec(sqlRe("DELETE FROM reservations WHERE event_id = $1")).
		WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(sqlRe("UPDATE events SET capacity_left = capacity WHERE id = $1")).
		WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := repo.ClearEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestDeleteAccount(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	mock.ExpectQuery(sqlRe("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(userID))
	mock.ExpectQuery(sqlRe("DELETE FROM reservations r USING events e")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"event_id", "creator_id"}).
			AddRow(event2ID, otherID).
			AddRow(createdID, userID).
			AddRow(eventID, otherID))
	// Released in id order: eventID sorts before event2ID.
	mock.ExpectQuery(sqlRe("SET capacity_left = LEAST(capacity, capacity_left + $2)")).
		WithArgs(eventID, 1).
		WillReturnRows(pgxmock.NewRows([]string{"capacity_left"}).AddRow(1))
	mock.ExpectQuery(sqlRe("SET capacity_left = LEAST(capacity, capacity_left + $2)")).
		WithArgs(event2ID, 1).
		WillReturnRows(pgxmock.NewRows([]string{"capacity_left"}).AddRow(7))
	mock.ExpectQuery(sqlRe("DELETE FROM events WHERE creator_id = $1 RETURNING id")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(createdID))
	mock.ExpectExec(sqlRe("DELETE FROM users WHERE id = $1")).
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	out, err := repo.DeleteAccount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{createdID}, out.DeletedEvents)
	assert.Equal(t, []string{eventID, event2ID}, out.ReleasedEvents)
}

func TestDeleteAccountRollsBackOnFailure(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	mock.ExpectQuery(sqlRe("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(userID))
	mock.ExpectQuery(sqlRe("DELETE FROM reservations r USING events e")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"event_id", "creator_id"}).AddRow(eventID, otherID))
	mock.ExpectQuery(sqlRe("SET capacity_left = LEAST(capacity, capacity_left + $2)")).
		WithArgs(eventID, 1).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.DeleteAccount(context.Background(), userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDeleteAccountUnknownUser(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectBegin(mock)
	mock.ExpectQuery(sqlRe("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.DeleteAccount(context.Background(), userID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListAllReservations(t *testing.T) {
	mock, repo := newReservationRepo(t)

	mock.ExpectQuery(sqlRe("FROM reservations ORDER BY created_at ASC, id ASC")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "event_id", "created_at"}).
			AddRow(createdID, userID, eventID, fixedNow))

	list, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, createdID, list[0].ID)
}

var attendeeCols = []string{"id", "name", "email", "is_admin", "is_premium", "created_at"}

func expectAttendees(mock pgxmock.PgxPoolIface, rows *pgxmock.Rows) {
	mock.ExpectQuery(sqlRe("FROM events e LEFT JOIN reservations r ON r.event_id = e.id LEFT JOIN users u ON u.id = r.user_id WHERE e.id = $1")).
		WithArgs(eventID).
		WillReturnRows(rows)
}

func TestAttendees(t *testing.T) {
	mock, repo := newReservationRepo(t)

	name, email := "Ada", "ada@example.com"
	admin, premium := false, true
	id := userID
	expectAttendees(mock, pgxmock.NewRows(attendeeCols).
		AddRow(&id, &name, &email, &admin, &premium, &fixedNow))

	out, err := repo.Attendees(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, model.User{ID: userID, Name: "Ada", Email: "ada@example.com", IsPremium: true, CreatedAt: fixedNow}, out.Users[0])
}

func TestAttendeesOfEmptyEvent(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectAttendees(mock, pgxmock.NewRows(attendeeCols).AddRow(nil, nil, nil, nil, nil, nil))

	out, err := repo.Attendees(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Users)
	assert.Empty(t, out.Users)
}

func TestAttendeesOfUnknownEvent(t *testing.T) {
	mock, repo := newReservationRepo(t)

	expectAttendees(mock, pgxmock.NewRows(attendeeCols))

	_, err := repo.Attendees(context.Background(), eventID)
	assert.ErrorIs(t, err, ErrNotFound)
}
