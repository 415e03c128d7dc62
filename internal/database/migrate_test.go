package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesEveryStatement(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for _, stmt := range Schema {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(Schema[0])).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(Schema[1])).WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaCarriesReservationGuards(t *testing.T) {
	all := ""
	for _, stmt := range Schema {
		all += stmt
	}
	assert.Contains(t, all, "UNIQUE (user_id, event_id)")
	assert.Contains(t, all, "capacity_left >= 0 AND capacity_left <= capacity")
	assert.Contains(t, all, "ON DELETE CASCADE")
}
