package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source is one named sub-query of an aggregate response. Run produces
// the value for the key; Default stands in when Run fails or times out.
type Source struct {
	Run     func(ctx context.Context) (interface{}, error)
	Default interface{}
}

// Composer executes a fixed map of named sources concurrently and
// merges their results into one flat object. A failing source never
// fails the aggregate: its key resolves to the source default instead.
type Composer struct {
	timeout time.Duration
	logger  *zap.Logger
}

// ComposerConfig configures per-source execution.
type ComposerConfig struct {
	// Timeout bounds each source individually. Zero disables the bound.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewComposer constructs a Composer.
func NewComposer(cfg ComposerConfig) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{timeout: cfg.Timeout, logger: logger}
}

// Compose runs every source concurrently and joins on all of them.
// Total latency is bounded by the slowest source, not the sum.
func (c *Composer) Compose(ctx context.Context, sources map[string]Source) map[string]interface{} {
	type keyed struct {
		key   string
		value interface{}
	}

	results := make(chan keyed, len(sources))
	var wg sync.WaitGroup
	for key, source := range sources {
		wg.Add(1)
		go func(key string, source Source) {
			defer wg.Done()
			results <- keyed{key: key, value: c.resolve(ctx, key, source)}
		}(key, source)
	}
	wg.Wait()
	close(results)

	merged := make(map[string]interface{}, len(sources))
	for entry := range results {
		merged[entry.key] = entry.value
	}
	return merged
}

func (c *Composer) resolve(ctx context.Context, key string, source Source) interface{} {
	if source.Run == nil {
		return source.Default
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	value, err := source.Run(runCtx)
	if err != nil {
		c.logger.Warn("aggregate source failed, using default",
			zap.String("source", key),
			zap.Error(err))
		return source.Default
	}
	return value
}
