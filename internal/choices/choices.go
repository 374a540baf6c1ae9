// Package choices lists the values a submission's group field may take.
package choices

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/kable/internal/cache"
	"github.com/debemdeboas/kable/internal/metrics"
	"github.com/debemdeboas/kable/internal/store"
)

var choicesLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	choicesLogger = l
}

// Source is the part of the record store that knows field choice sets.
type Source interface {
	GetFieldChoices(ctx context.Context, list, field string) ([]string, error)
}

var _ Source = (store.RecordStore)(nil)

type Provider struct {
	source Source
	list   string
	field  string
	cache  *cache.Expiring[string, []string]
}

// New returns a provider for list/field. With ttl > 0 successful loads are
// reused until they expire.
func New(source Source, list, field string, ttl time.Duration) *Provider {
	return &Provider{
		source: source,
		list:   list,
		field:  field,
		cache:  cache.NewExpiring[string, []string](ttl),
	}
}

func (p *Provider) key() string {
	return p.list + "\x00" + p.field
}

// ListGroupChoices never fails. A remote error is logged and yields an empty
// list, which callers render as "no choices yet".
func (p *Provider) ListGroupChoices(ctx context.Context) []string {
	if cached, ok := p.cache.Get(p.key()); ok {
		return clone(cached)
	}

	values, err := p.source.GetFieldChoices(ctx, p.list, p.field)
	metrics.RecordChoiceLoad(err)
	if err != nil {
		choicesLogger.Warn().
			Err(err).
			Str("list", p.list).
			Str("field", p.field).
			Msg("Failed to load group choices")
		return []string{}
	}

	p.cache.Set(p.key(), clone(values))
	choicesLogger.Debug().Int("count", len(values)).Str("field", p.field).Msg("Loaded group choices")
	return clone(values)
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// LoadAsync loads the choices in the background. The channel receives exactly
// one value and is then closed.
func (p *Provider) LoadAsync(ctx context.Context) <-chan []string {
	out := make(chan []string, 1)
	go func() {
		defer close(out)
		out <- p.ListGroupChoices(ctx)
	}()
	return out
}

// Invalidate drops cached choices so the next call goes to the store.
func (p *Provider) Invalidate() {
	p.cache.Delete(p.key())
}
