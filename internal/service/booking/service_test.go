package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/avelychko/slotbook/internal/domain"
	"github.com/avelychko/slotbook/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

// scriptAttempter returns its scripted errors in order; a nil entry is
// a success. Calls past the end of the script succeed.
type scriptAttempter struct {
	mu     sync.Mutex
	script []error
	calls  int
	detail *domain.BookingDetail

	// onCall, when set, runs before each attempt with the 1-based call
	// number.
	onCall func(n int)
}

func (a *scriptAttempter) Attempt(_ context.Context, slotID, userID uuid.UUID) (*domain.BookingDetail, error) {
	a.mu.Lock()
	a.calls++
	n := a.calls
	var err error
	if n <= len(a.script) {
		err = a.script[n-1]
	}
	hook := a.onCall
	a.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	if err != nil {
		return nil, err
	}

	if a.detail != nil {
		return a.detail, nil
	}

	return &domain.BookingDetail{
		Booking: domain.Booking{
			ID:     uuid.New(),
			SlotID: slotID,
			UserID: userID,
			Status: domain.BookingConfirmed,
		},
	}, nil
}

func (a *scriptAttempter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestReserve_FirstAttemptSucceeds(t *testing.T) {
	att := &scriptAttempter{}
	svc := newService(att, discardLogger(), fastConfig(3))

	detail, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, domain.BookingConfirmed, detail.Booking.Status)
	assert.Equal(t, 1, att.callCount())
}

func TestReserve_RetriesConflictThenSucceeds(t *testing.T) {
	att := &scriptAttempter{script: []error{
		repository.ErrConflict,
		repository.ErrConflict,
		nil,
	}}
	svc := newService(att, discardLogger(), fastConfig(3))

	detail, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, 3, att.callCount())
}

func TestReserve_ConflictExhausted(t *testing.T) {
	att := &scriptAttempter{script: []error{
		repository.ErrConflict,
		repository.ErrConflict,
		repository.ErrConflict,
	}}
	svc := newService(att, discardLogger(), fastConfig(3))

	detail, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())
	require.Nil(t, detail)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CodeConflictExhausted, f.Code)
	assert.Equal(t, 3, f.RetryCount)
	assert.Equal(t, "booking conflict due to high demand, please try again", f.Message)
	assert.Equal(t, 3, att.callCount(), "no attempt past MaxRetries")
}

func TestReserve_TerminalErrorsDoNotRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    Code
		message string
	}{
		{"slot not found", repository.ErrNotFound, CodeSlotNotFound, "slot not found"},
		{"slot full", repository.ErrSlotFull, CodeSlotFull, "slot is fully booked"},
		{"duplicate booking", repository.ErrDuplicateBooking, CodeDuplicateBooking, "user already has a booking for this slot"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			att := &scriptAttempter{script: []error{tc.err}}
			svc := newService(att, discardLogger(), fastConfig(3))

			_, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tc.code, f.Code)
			assert.Equal(t, tc.message, f.Message)
			assert.Equal(t, 0, f.RetryCount, "terminal on first attempt consumed no retries")
			assert.Equal(t, 1, att.callCount())
		})
	}
}

func TestReserve_TerminalAfterConflictCountsRetries(t *testing.T) {
	att := &scriptAttempter{script: []error{
		repository.ErrConflict,
		repository.ErrSlotFull,
	}}
	svc := newService(att, discardLogger(), fastConfig(3))

	_, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CodeSlotFull, f.Code)
	assert.Equal(t, 1, f.RetryCount)
	assert.Equal(t, 2, att.callCount())
}

func TestReserve_UnexpectedErrorHidesDetail(t *testing.T) {
	att := &scriptAttempter{script: []error{errors.New("pq: connection reset by peer")}}
	svc := newService(att, discardLogger(), fastConfig(3))

	_, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CodeUnexpected, f.Code)
	assert.Equal(t, "an unexpected error occurred, please try again", f.Message)
	assert.NotContains(t, f.Message, "connection reset")
	assert.Equal(t, 1, att.callCount())
}

func TestReserve_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	att := &scriptAttempter{script: []error{repository.ErrConflict, repository.ErrConflict}}
	att.onCall = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	svc := newService(att, discardLogger(), Config{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   time.Second,
	})

	_, err := svc.Reserve(ctx, uuid.New(), uuid.New())

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CodeUnexpected, f.Code)
	assert.Equal(t, 1, f.RetryCount)
	assert.Equal(t, 1, att.callCount(), "no attempt after cancellation")
}

func TestReserve_TracksInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	att := &scriptAttempter{}
	att.onCall = func(int) {
		entered <- struct{}{}
		<-release
	}
	svc := newService(att, discardLogger(), fastConfig(3))

	slotID := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Reserve(context.Background(), slotID, uuid.New())
		assert.NoError(t, err)
	}()

	<-entered
	assert.Equal(t, 1, svc.InFlight(slotID))

	close(release)
	<-done
	assert.Equal(t, 0, svc.InFlight(slotID), "tracker entry dropped after completion")
}

// memAttempter reproduces the storage layer's optimistic protocol in
// memory: read the slot version, check capacity and duplicates, then a
// version-guarded commit. The version advances only on a successful
// commit, exactly as the guarded UPDATE behaves, so any contender can
// lose at most maxBookings races before the slot settles.
type memAttempter struct {
	mu          sync.Mutex
	version     int64
	maxBookings int
	confirmed   map[uuid.UUID]struct{}
	missing     bool
}

func newMemAttempter(maxBookings int) *memAttempter {
	return &memAttempter{
		maxBookings: maxBookings,
		confirmed:   make(map[uuid.UUID]struct{}),
	}
}

func (m *memAttempter) Attempt(_ context.Context, slotID, userID uuid.UUID) (*domain.BookingDetail, error) {
	if m.missing {
		return nil, repository.ErrNotFound
	}

	m.mu.Lock()
	readVersion := m.version
	_, dup := m.confirmed[userID]
	full := len(m.confirmed) >= m.maxBookings
	m.mu.Unlock()

	if dup {
		return nil, repository.ErrDuplicateBooking
	}
	if full {
		return nil, repository.ErrSlotFull
	}

	// widen the read-to-write window so contenders actually race
	runtime.Gosched()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.version != readVersion {
		return nil, repository.ErrConflict
	}

	m.version++
	m.confirmed[userID] = struct{}{}

	return &domain.BookingDetail{
		Booking: domain.Booking{
			ID:     uuid.New(),
			SlotID: slotID,
			UserID: userID,
			Status: domain.BookingConfirmed,
		},
		Slot: domain.Slot{
			ID:              slotID,
			MaxBookings:     m.maxBookings,
			CurrentBookings: len(m.confirmed),
			Version:         m.version,
		},
	}, nil
}

func (m *memAttempter) confirmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.confirmed)
}

func TestReserve_CapacityUnderContention(t *testing.T) {
	const (
		capacity   = 3
		contenders = 16
	)

	att := newMemAttempter(capacity)
	// each contender can hit at most `capacity` version races, so
	// MaxRetries above that rules out spurious exhaustion
	svc := newService(att, discardLogger(), fastConfig(capacity+2))

	slotID := uuid.New()

	results := make(chan error, contenders)
	var wg sync.WaitGroup
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), slotID, uuid.New())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, slotFull int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}

		var f *Failure
		require.ErrorAs(t, err, &f)
		require.Equal(t, CodeSlotFull, f.Code, "only SLOT_FULL expected once capacity settles")
		slotFull++
	}

	assert.Equal(t, capacity, succeeded, "capacity is never exceeded and always filled")
	assert.Equal(t, contenders-capacity, slotFull)
	assert.Equal(t, capacity, att.confirmedCount())
}

func TestReserve_ConcurrentDuplicatesCollapseToOne(t *testing.T) {
	const contenders = 8

	att := newMemAttempter(100)
	svc := newService(att, discardLogger(), fastConfig(5))

	slotID := uuid.New()
	userID := uuid.New()

	results := make(chan error, contenders)
	var wg sync.WaitGroup
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), slotID, userID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, duplicate int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}

		var f *Failure
		require.ErrorAs(t, err, &f)
		require.Equal(t, CodeDuplicateBooking, f.Code)
		duplicate++
	}

	assert.Equal(t, 1, succeeded, "same user books the slot exactly once")
	assert.Equal(t, contenders-1, duplicate)
	assert.Equal(t, 1, att.confirmedCount())
}

func TestReserve_MissingSlot(t *testing.T) {
	att := newMemAttempter(1)
	att.missing = true
	svc := newService(att, discardLogger(), fastConfig(3))

	_, err := svc.Reserve(context.Background(), uuid.New(), uuid.New())

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CodeSlotNotFound, f.Code)
	assert.Equal(t, 0, f.RetryCount)
}

func TestNewService_Defaults(t *testing.T) {
	svc := newService(&scriptAttempter{}, nil, Config{})

	assert.Equal(t, 3, svc.maxRetries)
	assert.Equal(t, 100*time.Millisecond, svc.backoff.Base)
	assert.Equal(t, 2*time.Second, svc.backoff.Max)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.tracker)
}
