package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/velogear/velogear-backend/internal/stock"
	"github.com/velogear/velogear-backend/pkg/metrics"
)

type stockLedger interface {
	Availability(ctx context.Context, key stock.ItemKey) (stock.Availability, error)
	ReleaseAvailability(ctx context.Context, key stock.ItemKey) (stock.Availability, error)
	CompareAndDecrement(ctx context.Context, key stock.ItemKey, qty, expected int) (bool, error)
	CompareAndIncrement(ctx context.Context, key stock.ItemKey, qty, expected int) (bool, error)
}

// OptimisticBackend reserves stock with read-then-conditional-write rounds.
// Each round reads the current count and issues a compare-and-swap decrement;
// a lost race re-reads and tries again up to the configured attempt bound.
type OptimisticBackend struct {
	ledger   stockLedger
	attempts int
	backoff  time.Duration
	metrics  *metrics.CheckoutMetrics
}

// NewOptimisticBackend builds the client-side reserver. attempts bounds the
// number of compare-and-swap rounds per line; values below one are coerced to
// a single round.
func NewOptimisticBackend(ledger stockLedger, attempts int, backoff time.Duration, m *metrics.CheckoutMetrics) *OptimisticBackend {
	if attempts < 1 {
		attempts = 1
	}
	return &OptimisticBackend{
		ledger:   ledger,
		attempts: attempts,
		backoff:  backoff,
		metrics:  m,
	}
}

// Reserve decrements qty from the key's stock. Insufficient stock and missing
// products fail immediately; only lost races are retried.
func (b *OptimisticBackend) Reserve(ctx context.Context, key stock.ItemKey, qty int) error {
	return b.attemptRounds(ctx, key, b.ledger.Availability, func(ctx context.Context, observed int) (bool, error) {
		return b.ledger.CompareAndDecrement(ctx, key, qty, observed)
	})
}

// Release adds qty back through the same guarded write so racing releases
// cannot clobber each other. The read tolerates archived products: a
// cancellation restores stock even when the product left the catalog after
// the order was placed.
func (b *OptimisticBackend) Release(ctx context.Context, key stock.ItemKey, qty int) error {
	return b.attemptRounds(ctx, key, b.ledger.ReleaseAvailability, func(ctx context.Context, observed int) (bool, error) {
		return b.ledger.CompareAndIncrement(ctx, key, qty, observed)
	})
}

func (b *OptimisticBackend) attemptRounds(
	ctx context.Context,
	key stock.ItemKey,
	read func(context.Context, stock.ItemKey) (stock.Availability, error),
	write func(context.Context, int) (bool, error),
) error {
	backoff := retry.WithMaxRetries(uint64(b.attempts-1), retry.NewConstant(b.nonZeroBackoff()))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		avail, err := read(ctx, key)
		if err != nil {
			return err
		}
		applied, err := write(ctx, avail.Stock)
		if err != nil {
			return nameInsufficient(err, avail.ProductName)
		}
		if !applied {
			b.metrics.IncContentionRetry()
			return retry.RetryableError(errContendedRound)
		}
		return nil
	})
	if errors.Is(err, errContendedRound) {
		return &ContentionError{Key: key, Attempts: b.attempts}
	}
	return err
}

// nameInsufficient stamps the product name the read observed onto an
// insufficient-stock failure, so the shopper sees which product ran out.
func nameInsufficient(err error, name string) error {
	if name == "" {
		return err
	}
	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) && insufficient.Name == "" {
		insufficient.Name = name
	}
	return err
}

func (b *OptimisticBackend) nonZeroBackoff() time.Duration {
	if b.backoff <= 0 {
		return time.Millisecond
	}
	return b.backoff
}

var errContendedRound = errors.New("stock row changed between read and write")
