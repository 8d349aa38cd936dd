package sampler

import (
	"fmt"

	"github.com/jihwankim/cachebench/internal/workload"
)

const alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// indexDist draws an index in [0, cardinality) per a keyspace's configured
// key_distribution, wrapping either a uniform draw or a Zipf rank sampler.
type indexDist struct {
	cardinality int
	zipf        *Zipf // nil for Uniform
}

func newIndexDist(d workload.KeyDistribution, cardinality int) *indexDist {
	id := &indexDist{cardinality: cardinality}
	if d.Model == workload.Zipf {
		id.zipf = NewZipf(cardinality, d.Parameters.Exponent)
	}
	return id
}

func (id *indexDist) sample(rng *RNG) int {
	if id.zipf != nil {
		// Zipf ranks are 1-based; shift to a 0-based key index.
		return id.zipf.Sample(rng) - 1
	}
	return rng.Intn(id.cardinality)
}

// fieldGen draws bytes for one key/inner-key/value shape: fixed length,
// either zero-padded decimal bytes of a cardinality-bounded index (u32) or
// random alphanumeric bytes that do not depend on the index.
type fieldGen struct {
	length      int
	fieldType   workload.FieldType
	cardinality int
}

func (g fieldGen) generate(rng *RNG, idx int) []byte {
	switch g.fieldType {
	case workload.FieldU32:
		return formatU32(idx, g.length)
	default:
		return randomAlphanumeric(rng, g.length)
	}
}

func randomAlphanumeric(rng *RNG, length int) []byte {
	out := make([]byte, length)
	for i := range out {
		out[i] = alphanumericAlphabet[rng.Intn(len(alphanumericAlphabet))]
	}
	return out
}

// formatU32 zero-pads idx to exactly width digits. Callers must have
// validated cardinality <= 10^width upstream
// (internal/workload/validate.validateKeyspace); an index with more than
// width digits is written in full, giving a result longer than width.
func formatU32(idx, width int) []byte {
	s := fmt.Sprintf("%0*d", width, idx)
	return []byte(s)
}

// KeyspaceSampler draws keys, commands, inner keys, and values for one
// workload.Keyspace, wrapping pre-built alias tables and index
// distributions so every draw after construction is O(1).
type KeyspaceSampler struct {
	keyspace *workload.Keyspace

	keyIndex *indexDist
	keyField fieldGen

	commandAlias *Alias
	commands     []workload.CommandTag

	innerKeyAlias *Alias
	innerKeyGens  []fieldGen
	innerKeyIdx   []*indexDist

	valueAlias *Alias
	valueGens  []fieldGen

	topicAlias *Alias
	topics     [][]byte
}

// NewKeyspaceSampler builds every alias table and index distribution a
// keyspace needs, once, at startup. Callers must run
// internal/workload/validate first; this constructor trusts its invariants
// (non-empty commands, weight sums > 0) and panics if they are violated.
func NewKeyspaceSampler(k *workload.Keyspace) *KeyspaceSampler {
	ks := &KeyspaceSampler{
		keyspace: k,
		keyIndex: newIndexDist(k.KeyDistribution, k.Cardinality),
		keyField: fieldGen{length: k.Length, fieldType: workload.FieldType(k.KeyType)},
	}

	cmdWeights := make([]float64, len(k.Commands))
	ks.commands = make([]workload.CommandTag, len(k.Commands))
	for i, c := range k.Commands {
		cmdWeights[i] = float64(c.Weight)
		ks.commands[i] = c.Verb
	}
	ks.commandAlias = NewAlias(cmdWeights)

	if len(k.InnerKeys) > 0 {
		innerWeights := make([]float64, len(k.InnerKeys))
		ks.innerKeyGens = make([]fieldGen, len(k.InnerKeys))
		ks.innerKeyIdx = make([]*indexDist, len(k.InnerKeys))
		for i, ik := range k.InnerKeys {
			innerWeights[i] = float64(ik.Weight)
			ks.innerKeyGens[i] = fieldGen{length: ik.Length, fieldType: ik.FieldType}
			ks.innerKeyIdx[i] = newIndexDist(workload.KeyDistribution{Model: workload.Uniform}, ik.Cardinality)
		}
		ks.innerKeyAlias = NewAlias(innerWeights)
	}

	if len(k.Values) > 0 {
		valWeights := make([]float64, len(k.Values))
		ks.valueGens = make([]fieldGen, len(k.Values))
		for i, val := range k.Values {
			valWeights[i] = float64(val.Weight)
			ks.valueGens[i] = fieldGen{length: val.Length, fieldType: val.FieldType}
		}
		ks.valueAlias = NewAlias(valWeights)
	}

	if len(k.Topics) > 0 {
		topicWeights := make([]float64, len(k.Topics))
		ks.topics = make([][]byte, len(k.Topics))
		for i, t := range k.Topics {
			topicWeights[i] = float64(t.Weight)
			ks.topics[i] = []byte(t.Name)
		}
		ks.topicAlias = NewAlias(topicWeights)
	}

	return ks
}

// Keyspace returns the policy object this sampler was built from.
func (ks *KeyspaceSampler) Keyspace() *workload.Keyspace { return ks.keyspace }

// ChooseCommand draws a command tag per the keyspace's command alias.
func (ks *KeyspaceSampler) ChooseCommand(rng *RNG) workload.CommandTag {
	return ks.commands[ks.commandAlias.Sample(rng)]
}

// GenerateKey draws an index per the keyspace's key_distribution and
// returns keyspace.Length bytes: the index zero-padded for u32 keys, or
// random alphanumeric bytes (independent of the index) otherwise.
func (ks *KeyspaceSampler) GenerateKey(rng *RNG) []byte {
	idx := ks.keyIndex.sample(rng)
	return ks.keyField.generate(rng, idx)
}

// GenerateInnerKey draws an inner key/field if this keyspace has any
// configured, returning (nil, false) otherwise.
func (ks *KeyspaceSampler) GenerateInnerKey(rng *RNG) ([]byte, bool) {
	if ks.innerKeyAlias == nil {
		return nil, false
	}
	i := ks.innerKeyAlias.Sample(rng)
	idx := ks.innerKeyIdx[i].sample(rng)
	return ks.innerKeyGens[i].generate(rng, idx), true
}

// GenerateValue draws a value per the keyspace's value distribution,
// returning (nil, false) when no value descriptor applies. Write commands
// require values.HasWriteCommand() at validation time, so a configured,
// validated keyspace never hits the false branch from a write path.
func (ks *KeyspaceSampler) GenerateValue(rng *RNG) ([]byte, bool) {
	if ks.valueAlias == nil {
		return nil, false
	}
	i := ks.valueAlias.Sample(rng)
	// Value bytes have no notion of cardinality; the index only selects
	// which descriptor's random bytes to synthesize.
	return ks.valueGens[i].generate(rng, 0), true
}

// GenerateTopic draws a topic name per the keyspace's topic weights,
// returning (nil, false) when no topic is configured. Publish commands
// require topics at validation time, so a configured, validated keyspace
// never hits the false branch from a publish path.
func (ks *KeyspaceSampler) GenerateTopic(rng *RNG) ([]byte, bool) {
	if ks.topicAlias == nil {
		return nil, false
	}
	return ks.topics[ks.topicAlias.Sample(rng)], true
}
