package outbox

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

type fakeStore struct {
	pending []claimed
	acked   []uuid.UUID
	retried map[uuid.UUID]time.Time
	buried  map[uuid.UUID]string
}

func newFakeStore(items ...claimed) *fakeStore {
	return &fakeStore{pending: items, retried: map[uuid.UUID]time.Time{}, buried: map[uuid.UUID]string{}}
}

func (s *fakeStore) Claim(_ context.Context, _, _ time.Time, _, limit int) ([]claimed, error) {
	n := min(limit, len(s.pending))
	out := make([]claimed, n)
	for i := range n {
		out[i] = s.pending[i]
		out[i].Attempts++
	}
	s.pending = s.pending[n:]
	return out, nil
}

func (s *fakeStore) Ack(_ context.Context, id uuid.UUID) error {
	s.acked = append(s.acked, id)
	return nil
}

func (s *fakeStore) Retry(_ context.Context, id uuid.UUID, _ string, at time.Time) error {
	s.retried[id] = at
	return nil
}

func (s *fakeStore) Bury(_ context.Context, id uuid.UUID, lastError string) error {
	s.buried[id] = lastError
	return nil
}

func (s *fakeStore) Depth(context.Context) (int64, int64, error) {
	return int64(len(s.pending)), 0, nil
}

func (s *fakeStore) Lead(context.Context) (func(), error) {
	return func() {}, nil
}

type welcome struct {
	Email string `json:"email"`
}

func TestRelay_ProcessOnce(t *testing.T) {
	good := claimed{ID: uuid.New(), Topic: TopicUserCreated, EventID: uuid.New(), Payload: []byte(`{"email":"a@b.c"}`)}
	poison := claimed{ID: uuid.New(), Topic: TopicTenantProvisioned, EventID: uuid.New(), Payload: []byte(`{}`)}
	dead := claimed{ID: uuid.New(), Topic: TopicTenantProvisioned, EventID: uuid.New(), Payload: []byte(`{}`), Attempts: 2}
	st := newFakeStore(good, poison, dead)

	bus := eventbus.NewEventPublisher(logrus.New())
	var delivered []string
	bus.Subscribe(On(TopicUserCreated, func(ctx context.Context, meta *Meta, p welcome) error {
		delivered = append(delivered, p.Email)
		return nil
	}))
	bus.Subscribe(On(TopicTenantProvisioned, func(ctx context.Context, meta *Meta, p map[string]any) error {
		return errors.New("smtp down")
	}))

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := newRelay(st, NewBusDispatcher(bus), RelayOptions{
		MaxAttempts: 3,
		JitterMax:   -1,
		Rand:        rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	r.now = func() time.Time { return fixed }

	n, err := r.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.Equal(t, []string{"a@b.c"}, delivered)
	require.Equal(t, []uuid.UUID{good.ID}, st.acked)
	require.Equal(t, fixed.Add(time.Second), st.retried[poison.ID])
	require.Equal(t, "smtp down", st.buried[dead.ID])
}

func TestNewRelay_RequiresDispatcher(t *testing.T) {
	_, err := newRelay(newFakeStore(), nil, RelayOptions{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	maxBackoff := 60 * time.Second
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 0},
		{attempts: 1, want: time.Second},
		{attempts: 3, want: 4 * time.Second},
		{attempts: 7, want: 60 * time.Second},
		{attempts: 200, want: 60 * time.Second},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, backoff(tc.attempts, maxBackoff), "attempts=%d", tc.attempts)
	}
}

func TestJitterDeterministic(t *testing.T) {
	t.Parallel()

	got := jitter(rand.New(rand.NewSource(1)), 200*time.Millisecond)
	require.GreaterOrEqual(t, got, time.Duration(0))
	require.LessOrEqual(t, got, 200*time.Millisecond)
	require.Equal(t, got, jitter(rand.New(rand.NewSource(1)), 200*time.Millisecond))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello", truncate("hello world", 5))
	require.Equal(t, "", truncate("héllo", 0))
	// Does not split the two-byte rune.
	require.Equal(t, "h", truncate("héllo", 2))
}
