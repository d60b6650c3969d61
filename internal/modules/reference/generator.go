package reference

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookingcore/internal/domain"
)

const (
	Prefix      = "BK"
	MaxAttempts = 10
	suffixLen   = 8
)

// ExistsFunc checks the reference index. Pass one bound to the open
// transaction so the check and the insert see the same snapshot.
type ExistsFunc func(ctx context.Context, reference string) (bool, error)

type Generator struct {
	now    func() time.Time
	random func() string
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRandom replaces the uuid source; the first 8 characters are used.
func WithRandom(random func() string) Option {
	return func(g *Generator) { g.random = random }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		now:    time.Now,
		random: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns BK + YYYYMMDD (UTC) + 8 uppercase hex characters, unique
// according to exists.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	date := g.now().UTC().Format("20060102")
	for i := 0; i < MaxAttempts; i++ {
		ref := Prefix + date + g.suffix()
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", domain.ErrReferenceGenerationFailed
}

// ConfirmationCode is the short code shown to the customer.
func (g *Generator) ConfirmationCode() string {
	return g.suffix()
}

func (g *Generator) suffix() string {
	s := strings.ReplaceAll(g.random(), "-", "")
	if len(s) > suffixLen {
		s = s[:suffixLen]
	}
	return strings.ToUpper(s)
}
