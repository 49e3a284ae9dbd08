package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

func TestNew(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("window must be positive", func(t *testing.T) {
		_, err := alert.New("Maintenance", alert.SeverityInfo, from, &from)
		require.ErrorIs(t, err, alert.ErrInvalidWindow)
	})

	t.Run("unknown severity", func(t *testing.T) {
		_, err := alert.New("Maintenance", "urgent", from, nil)
		assert.Equal(t, serrors.Validation, serrors.CodeOf(err))
	})

	t.Run("empty message", func(t *testing.T) {
		_, err := alert.New("  ", alert.SeverityInfo, from, nil)
		assert.Equal(t, serrors.Validation, serrors.CodeOf(err))
	})

	t.Run("zero start means now", func(t *testing.T) {
		a, err := alert.New("Maintenance", alert.SeverityInfo, time.Time{}, nil)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), a.ActiveFrom(), time.Second)
	})
}

func TestIsActive(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)
	a, err := alert.New("Maintenance", alert.SeverityWarning, from, &to)
	require.NoError(t, err)

	assert.False(t, a.IsActive(from.Add(-time.Minute)))
	assert.True(t, a.IsActive(from))
	assert.True(t, a.IsActive(to.Add(-time.Minute)))
	assert.False(t, a.IsActive(to))

	open, err := alert.New("Heads up", alert.SeverityInfo, from, nil)
	require.NoError(t, err)
	assert.True(t, open.IsActive(from.AddDate(1, 0, 0)))
}

func TestSort(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mk := func(msg string, s alert.Severity, offset time.Duration) *alert.SystemAlert {
		a, err := alert.New(msg, s, base.Add(offset), nil)
		require.NoError(t, err)
		return a
	}
	alerts := []*alert.SystemAlert{
		mk("info", alert.SeverityInfo, 0),
		mk("late critical", alert.SeverityCritical, time.Hour),
		mk("warning", alert.SeverityWarning, 0),
		mk("early critical", alert.SeverityCritical, 0),
	}
	alert.Sort(alerts)

	var got []string
	for _, a := range alerts {
		got = append(got, a.Message())
	}
	assert.Equal(t, []string{"early critical", "late critical", "warning", "info"}, got)
}
