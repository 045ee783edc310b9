package ledger

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "stay-booking/internal/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedCapacity(total int) CapacitySource {
	return CapacityFunc(func(ctx context.Context, resourceID uuid.UUID) (int, error) {
		return total, nil
	})
}

func day(d int) time.Time {
	return time.Date(2025, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_MergesAndSorts(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	out, err := Normalize([]Demand{
		{ResourceID: b, Date: day(21), Count: 1},
		{ResourceID: a, Date: day(22).Add(15 * time.Hour), Count: 2},
		{ResourceID: a, Date: day(21), Count: 1},
		{ResourceID: a, Date: day(22), Count: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []Demand{
		{ResourceID: a, Date: day(21), Count: 1},
		{ResourceID: a, Date: day(22), Count: 3},
		{ResourceID: b, Date: day(21), Count: 1},
	}, out)
}

func TestNormalize_Rejects(t *testing.T) {
	_, err := Normalize(nil)
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = Normalize([]Demand{{ResourceID: uuid.New(), Date: day(1), Count: 0}})
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)

	_, err = Normalize([]Demand{{Date: day(1), Count: 1}})
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestExpandNights(t *testing.T) {
	id := uuid.New()
	out := ExpandNights(id, day(21), day(24), 2)

	require.Len(t, out, 3)
	assert.Equal(t, day(21), out[0].Date)
	assert.Equal(t, day(23), out[2].Date)
	assert.Equal(t, 2, out[1].Count)
	assert.Empty(t, ExpandNights(id, day(21), day(21), 1))
}

// Two concurrent requests for 3 units against capacity 5: one wins, the
// other sees available=2 and nothing of it is committed.
func TestMemory_ConcurrentRequestsCannotOverbook(t *testing.T) {
	ctx := context.Background()
	resource := uuid.New()
	l := NewMemory(fixedCapacity(5), zap.NewNop())

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = l.Reserve(ctx, []Demand{{ResourceID: resource, Date: day(21), Count: 3}})
		}(i)
	}
	close(start)
	wg.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)

	ce, ok := apperrors.IsCapacityExceededError(failures[0])
	require.True(t, ok)
	assert.Equal(t, 2, ce.Available)
	assert.Equal(t, resource, ce.ResourceID)

	avail, err := l.AvailableOn(ctx, resource, day(21))
	require.NoError(t, err)
	assert.Equal(t, 2, avail, "reserved count must be 3")
}

func TestMemory_BatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	roomy := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	tight := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	l := NewMemory(CapacityFunc(func(ctx context.Context, id uuid.UUID) (int, error) {
		if id == tight {
			return 1, nil
		}
		return 10, nil
	}), zap.NewNop())

	_, err := l.Reserve(ctx, []Demand{
		{ResourceID: roomy, Date: day(21), Count: 4},
		{ResourceID: roomy, Date: day(22), Count: 4},
		{ResourceID: tight, Date: day(22), Count: 2},
	})
	ce, ok := apperrors.IsCapacityExceededError(err)
	require.True(t, ok)
	assert.Equal(t, tight, ce.ResourceID)
	assert.Equal(t, day(22), ce.Date)
	assert.Equal(t, 1, ce.Available)

	for _, d := range []time.Time{day(21), day(22)} {
		avail, err := l.AvailableOn(ctx, roomy, d)
		require.NoError(t, err)
		assert.Equal(t, 10, avail)
	}
}

func TestMemory_FirstConflictInCanonicalOrder(t *testing.T) {
	ctx := context.Background()
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	l := NewMemory(fixedCapacity(1), zap.NewNop())

	_, err := l.Reserve(ctx, []Demand{
		{ResourceID: b, Date: day(20), Count: 2},
		{ResourceID: a, Date: day(23), Count: 2},
		{ResourceID: a, Date: day(22), Count: 2},
	})
	ce, ok := apperrors.IsCapacityExceededError(err)
	require.True(t, ok)
	assert.Equal(t, a, ce.ResourceID)
	assert.Equal(t, day(22), ce.Date)
}

func TestMemory_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	resource := uuid.New()
	l := NewMemory(fixedCapacity(5), zap.NewNop())

	other, err := l.Reserve(ctx, []Demand{{ResourceID: resource, Date: day(21), Count: 1}})
	require.NoError(t, err)
	h, err := l.Reserve(ctx, []Demand{
		{ResourceID: resource, Date: day(21), Count: 2},
		{ResourceID: resource, Date: day(22), Count: 2},
	})
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, h.ID))
	afterOnce, _ := l.AvailableOn(ctx, resource, day(21))

	require.NoError(t, l.Release(ctx, h.ID))
	afterTwice, _ := l.AvailableOn(ctx, resource, day(21))

	assert.Equal(t, 4, afterOnce)
	assert.Equal(t, afterOnce, afterTwice)

	d22, _ := l.AvailableOn(ctx, resource, day(22))
	assert.Equal(t, 5, d22)

	assert.NoError(t, l.Release(ctx, uuid.New()), "unknown handle is a no-op")
	assert.NotEqual(t, uuid.Nil, other.ID)
}

func TestMemory_AvailableOnUntouchedSlotUsesDefault(t *testing.T) {
	l := NewMemory(fixedCapacity(7), zap.NewNop())
	avail, err := l.AvailableOn(context.Background(), uuid.New(), day(1))
	require.NoError(t, err)
	assert.Equal(t, 7, avail)
}

// Random overlapping batches from many goroutines: committed reservations on
// every slot never exceed capacity, and each failed batch leaves no trace.
func TestMemory_NoOverbookingProperty(t *testing.T) {
	ctx := context.Background()
	const capacity = 6
	resources := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	l := NewMemory(fixedCapacity(capacity), zap.NewNop())

	var (
		mu        sync.Mutex
		committed = make(map[slotKey]int)
		wg        sync.WaitGroup
		successes atomic.Int32
	)

	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				var batch []Demand
				for n := rng.Intn(3) + 1; n > 0; n-- {
					batch = append(batch, Demand{
						ResourceID: resources[rng.Intn(len(resources))],
						Date:       day(rng.Intn(3) + 1),
						Count:      rng.Intn(3) + 1,
					})
				}
				h, err := l.Reserve(ctx, batch)
				if err != nil {
					_, ok := apperrors.IsCapacityExceededError(err)
					assert.True(t, ok, "unexpected error %v", err)
					continue
				}
				successes.Add(1)
				mu.Lock()
				for _, d := range h.Lines {
					committed[keyOf(d)] += d.Count
				}
				mu.Unlock()
			}
		}(int64(w))
	}
	wg.Wait()

	assert.Positive(t, successes.Load())
	for _, r := range resources {
		for d := 1; d <= 3; d++ {
			k := slotKey{resource: r, date: day(d)}
			assert.LessOrEqual(t, committed[k], capacity)

			avail, err := l.AvailableOn(ctx, r, day(d))
			require.NoError(t, err)
			assert.Equal(t, capacity-committed[k], avail, "ledger must match committed handles")
		}
	}
}
