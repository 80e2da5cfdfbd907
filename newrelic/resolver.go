package newrelic

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/kartta/types"
)

// Classification sentinels. NotFound also serves as the result for an
// empty resource name.
const (
	NotFound     = "NA"
	LookupFailed = "ERROR"
)

const progressEvery = 50

// productionAccounts are the classifications that mark a resource as
// Infrastructure. Exactly these two; everything else, sentinels
// included, is not.
var productionAccounts = map[string]bool{
	"MLF-PREPROD": true,
	"MLF-PROD":    true,
}

// IsInfrastructure reports whether a classification is one of the
// recognized production-account labels.
func IsInfrastructure(classification string) bool {
	return productionAccounts[classification]
}

// AccountLookup is the outbound entity-search call, injectable for
// tests.
type AccountLookup interface {
	AccountName(ctx context.Context, name string) (string, error)
}

// cacheSize is far above any realistic distinct-name count per run, so
// repeated names always hit the cache and trigger exactly one outbound
// call.
const cacheSize = 65536

// Resolver memoizes account lookups per raw (non-normalized) display
// name. Scoped to one run; the cache dies with the process.
type Resolver struct {
	client           AccountLookup // nil when no credential is configured
	cache            *lru.Cache[string, string]
	disabledSentinel string
	warnedDisabled   bool

	hits  int
	calls int
}

// NewResolver creates a run-scoped resolver. A nil client means lookup
// is disabled (missing credential); every name then resolves to the
// sentinel without a network call.
func NewResolver(client AccountLookup, disabledSentinel string) *Resolver {
	if disabledSentinel == "" {
		disabledSentinel = NotFound
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &Resolver{
		client:           client,
		cache:            cache,
		disabledSentinel: disabledSentinel,
	}
}

// Resolve returns the account classification for a resource name.
// Empty names resolve to "NA" without touching the cache. Transport or
// parse failures resolve to "ERROR", cached for the rest of the run.
func (r *Resolver) Resolve(ctx context.Context, name string) string {
	if name == "" {
		return NotFound
	}

	if cached, ok := r.cache.Get(name); ok {
		r.hits++
		return cached
	}

	if r.client == nil {
		if !r.warnedDisabled {
			log.Warn().Msg("no New Relic API key configured, account lookup disabled")
			r.warnedDisabled = true
		}
		r.cache.Add(name, r.disabledSentinel)
		return r.disabledSentinel
	}

	r.calls++
	account, err := r.client.AccountName(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("resource", name).Msg("account lookup failed")
		account = LookupFailed
	}

	r.cache.Add(name, account)
	return account
}

// Enrich resolves each row's account classification in place and sets
// the Infrastructure flag. Sequential; every lookup blocks the loop.
func (r *Resolver) Enrich(ctx context.Context, rows []types.ResourceRow) {
	log.Info().Int("rows", len(rows)).Msg("starting account enrichment")

	for i := range rows {
		account := r.Resolve(ctx, rows[i].ResourceName)
		rows[i].NewRelicAccount = account
		rows[i].Infrastructure = IsInfrastructure(account)

		if (i+1)%progressEvery == 0 {
			log.Info().Int("done", i+1).Int("total", len(rows)).Msg("enrichment progress")
		}
	}

	log.Info().
		Int("cache_hits", r.hits).
		Int("lookup_calls", r.calls).
		Msg("account enrichment complete")
}

// Stats reports cache effectiveness for the run summary.
func (r *Resolver) Stats() (hits, calls int) {
	return r.hits, r.calls
}
