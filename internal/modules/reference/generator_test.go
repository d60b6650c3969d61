package reference

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookingcore/internal/domain"
)

var refPattern = regexp.MustCompile(`^BK\d{8}[0-9A-F]{8}$`)

func fixedClock() time.Time {
	return time.Date(2026, 5, 4, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
}

func TestGenerator_Format(t *testing.T) {
	g := New(WithClock(fixedClock))

	ref, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) { return false, nil })
	require.NoError(t, err)

	assert.Regexp(t, refPattern, ref)
	// 23:30 at UTC-5 is already the next day in UTC.
	assert.Equal(t, "BK20260505", ref[:10])
}

func TestGenerator_RetriesOnCollision(t *testing.T) {
	ids := []string{"aaaaaaaa-1111", "aaaaaaaa-2222", "bbbbbbbb-3333"}
	i := 0
	g := New(WithClock(fixedClock), WithRandom(func() string {
		id := ids[i]
		i++
		return id
	}))

	taken := map[string]bool{"BK20260505AAAAAAAA": true}
	ref, err := g.Generate(context.Background(), func(_ context.Context, r string) (bool, error) {
		return taken[r], nil
	})

	require.NoError(t, err)
	assert.Equal(t, "BK20260505BBBBBBBB", ref)
	assert.Equal(t, 3, i)
}

func TestGenerator_ExhaustionFails(t *testing.T) {
	calls := 0
	g := New(WithRandom(func() string { return "deadbeef-0000" }))

	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})

	assert.ErrorIs(t, err, domain.ErrReferenceGenerationFailed)
	assert.Equal(t, MaxAttempts, calls)
}

func TestGenerator_LookupErrorIsReturned(t *testing.T) {
	boom := errors.New("db down")
	g := New()

	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_ConfirmationCode(t *testing.T) {
	code := New().ConfirmationCode()
	assert.Regexp(t, `^[0-9A-F]{8}$`, code)
}
