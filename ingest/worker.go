package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/fxquote/storage/types"
)

var errProviderPanic = errors.New("provider panicked")

// scheduledIngest is a single scheduled Provider ingest job
type scheduledIngest struct {
	at         time.Time
	provider   Provider
	providerID xid.ID
}

// Less sorts scheduled ingests by their due-time (earliest first)
func (a scheduledIngest) Less(b scheduledIngest) bool {
	return a.at.Before(b.at)
}

// workerInfo is the work context for the provider routine
type workerInfo struct {
	provider   Provider
	resCh      chan<- *workerResponse
	providerID xid.ID
}

// workerResponse is the provider routine response
type workerResponse struct {
	error      error                 // encountered error, if any
	rates      []*types.ExchangeRate // the fetched exchange rates
	providerID xid.ID                // the provider ID
	took       time.Duration         // the fetch duration
}

// handleJob fetches using the provider. A single fetch never outlives
// the provider interval, and a panicking provider is reported as a failed fetch
func handleJob(
	ctx context.Context,
	info *workerInfo,
) {
	fetchCtx, cancelFn := context.WithTimeout(ctx, info.provider.Interval())
	defer cancelFn()

	start := time.Now()

	rates, err := safeFetch(fetchCtx, info.provider)

	response := &workerResponse{
		error:      err,
		rates:      rates,
		providerID: info.providerID,
		took:       time.Since(start),
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}

// safeFetch runs the provider fetch, converting a panic into an error
func safeFetch(ctx context.Context, p Provider) (rates []*types.ExchangeRate, err error) {
	defer func() {
		if r := recover(); r != nil {
			rates = nil
			err = fmt.Errorf("%w: %v", errProviderPanic, r)
		}
	}()

	return p.Fetch(ctx)
}
