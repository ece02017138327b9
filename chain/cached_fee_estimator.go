package chain

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var cacheDuration time.Duration = time.Minute * 5

// now is replaced in tests.
var now = time.Now

type cachedEstimation struct {
	fetchedAt  time.Time
	estimation *FeeEstimation
}

// CachedFeeEstimator remembers estimations per strategy for cacheDuration.
// When the inner estimator fails, a stale estimation is served if one exists.
type CachedFeeEstimator struct {
	inner FeeEstimator
	cache map[FeeStrategy]*cachedEstimation
	mtx   sync.Mutex
}

func NewCachedFeeEstimator(inner FeeEstimator) *CachedFeeEstimator {
	return &CachedFeeEstimator{
		inner: inner,
		cache: make(map[FeeStrategy]*cachedEstimation),
	}
}

func (e *CachedFeeEstimator) EstimateFeeRate(
	ctx context.Context,
	strategy FeeStrategy,
) (*FeeEstimation, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	cached, ok := e.cache[strategy]
	if ok && cached.fetchedAt.Add(cacheDuration).After(now()) {
		return cached.estimation, nil
	}

	fetchedAt := now()
	estimation, err := e.inner.EstimateFeeRate(ctx, strategy)
	if err != nil {
		if ok {
			log.Printf("EstimateFeeRate(%v) failed, using estimation from %v: %v",
				strategy, cached.fetchedAt, err)
			return cached.estimation, nil
		}
		return nil, err
	}

	e.cache[strategy] = &cachedEstimation{
		fetchedAt:  fetchedAt,
		estimation: estimation,
	}

	return estimation, nil
}
