package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/md-rashed-zaman/salonslots/services/booking-service/internal/booking"
)

var (
	_ booking.Store = (*BookingRepository)(nil)
	_ booking.Tx    = (*pgTx)(nil)
)

func TestIsConflict(t *testing.T) {
	excl := &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"}
	assert.True(t, IsConflict(excl))
	assert.True(t, IsConflict(fmt.Errorf("insert: %w", excl)))
	assert.False(t, IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsConflict(errors.New("boom")))
	assert.False(t, IsConflict(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(pgx.ErrNoRows))
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("boom")))
}
