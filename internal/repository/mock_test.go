package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow   = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	futureDate = fixedNow.Add(72 * time.Hour)
	pastDate   = fixedNow.Add(-72 * time.Hour)
)

const (
	userID    = "11111111-1111-1111-1111-111111111111"
	otherID   = "22222222-2222-2222-2222-222222222222"
	eventID   = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	event2ID  = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	createdID = "cccccccc-cccc-cccc-cccc-cccccccccccc"
)

// sqlRe turns a SQL fragment into a whitespace-insensitive pattern.
func sqlRe(sql string) string {
	parts := strings.Fields(sql)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func newTransactor(mock pgxmock.PgxPoolIface, attempts int) *Transactor {
	tr := NewTransactor(mock, attempts)
	tr.sleep = func(context.Context, time.Duration) error { return nil }
	return tr
}

func newReservationRepo(t *testing.T) (pgxmock.PgxPoolIface, *ReservationRepository) {
	t.Helper()
	mock := newMock(t)
	repo := NewReservationRepository(mock, newTransactor(mock, 3)).
		WithClock(func() time.Time { return fixedNow })
	return mock, repo
}

func expectBegin(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

func expectLockEvent(mock pgxmock.PgxPoolIface, id string, date time.Time, capacity, left int) {
	mock.ExpectQuery(sqlRe("FROM events WHERE id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "creator_id", "date", "capacity", "capacity_left"}).
			AddRow(id, otherID, date, capacity, left))
}

func expectExists(mock pgxmock.PgxPoolIface, user, event string, exists bool) {
	mock.ExpectQuery(sqlRe("SELECT EXISTS(SELECT 1 FROM reservations WHERE user_id = $1 AND event_id = $2)")).
		WithArgs(user, event).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}
