package sync

import (
	"context"
	stdsync "sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/service/provider"
)

// fanOutPrices fetches price listings for every country with bounded
// concurrency and a per-minute request cap. A country whose fetch fails is
// counted and skipped; one bad country must not sink the whole run. The
// returned error is only non-nil on cancellation.
func fanOutPrices(
	ctx context.Context,
	client provider.Client,
	countries []catalog.Country,
	maxInFlight, requestsPerMinute int,
	logger *zap.Logger,
) (rows []catalog.PriceRow, failed int, err error) {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)

	var mu stdsync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	for _, country := range countries {
		country := country
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			countryRows, err := client.ListPrices(ctx, country)
			if err != nil {
				// Credential failures are vendor-wide; every remaining
				// country would fail the same way, so abort the run.
				if vendor.KindOf(err) == vendor.KindBadCredentials {
					return err
				}
				logger.Warn("price fetch failed for country",
					zap.String("country", country.Code), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			rows = append(rows, countryRows...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failed, err
	}
	return rows, failed, nil
}
