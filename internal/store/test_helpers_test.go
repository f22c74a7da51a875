package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedGrant creates a tenant, employee, and active grant, returning the
// grant as stored (version 1, nothing vested).
func seedGrant(t *testing.T, s *Store, grantDate, total string) Grant {
	t.Helper()
	ctx := context.Background()

	tenantID := uuid.Must(uuid.NewV7()).String()
	employeeID := uuid.Must(uuid.NewV7()).String()
	grantID := uuid.Must(uuid.NewV7()).String()

	require.NoError(t, s.InsertTenant(ctx, Tenant{ID: tenantID, Name: "Acme"}))
	require.NoError(t, s.InsertEmployee(ctx, Employee{ID: employeeID, TenantID: tenantID, Name: "Sam Doe"}))
	require.NoError(t, s.InsertGrant(ctx, Grant{
		ID:         grantID,
		TenantID:   tenantID,
		EmployeeID: employeeID,
		GrantDate:  date.MustParse(grantDate),
		Total:      fixed.MustParse(total),
	}))

	g, err := s.GetGrant(ctx, grantID)
	require.NoError(t, err)
	return g
}

// rawEvent builds an event row for corruption-injection tests.
func rawEvent(g Grant, vestDate, shares string, createdAt time.Time) VestingEvent {
	return VestingEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		GrantID:   g.ID,
		TenantID:  g.TenantID,
		VestDate:  date.MustParse(vestDate),
		Shares:    fixed.MustParse(shares),
		CreatedAt: createdAt,
	}
}
