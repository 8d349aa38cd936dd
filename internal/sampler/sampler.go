package sampler

import "github.com/jihwankim/cachebench/internal/workload"

// Sampler is the top-level draw surface a generator task holds: one alias
// table over keyspace weights plus one KeyspaceSampler per keyspace, built
// once at startup and never mutated thereafter (spec invariant: "keyspace_dist
// and all per-keyspace samplers are constructed once and never mutated").
type Sampler struct {
	keyspaceAlias *Alias
	keyspaces     []*KeyspaceSampler
}

// New builds a Sampler from an already-validated keyspace list. Callers
// run internal/workload/validate.ValidateAll first.
func New(keyspaces []workload.Keyspace) *Sampler {
	weights := make([]float64, len(keyspaces))
	subs := make([]*KeyspaceSampler, len(keyspaces))
	for i := range keyspaces {
		weights[i] = float64(keyspaces[i].Weight)
		subs[i] = NewKeyspaceSampler(&keyspaces[i])
	}
	return &Sampler{
		keyspaceAlias: NewAlias(weights),
		keyspaces:     subs,
	}
}

// ChooseKeyspace draws a keyspace per the configured keyspace weights.
func (s *Sampler) ChooseKeyspace(rng *RNG) *KeyspaceSampler {
	return s.keyspaces[s.keyspaceAlias.Sample(rng)]
}

// Keyspaces returns every per-keyspace sampler, in configuration order.
func (s *Sampler) Keyspaces() []*KeyspaceSampler { return s.keyspaces }
