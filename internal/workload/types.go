// Package workload defines the keyspace and command policy objects the
// generator samples from: the declarative description of "what traffic
// looks like" for one target keyspace.
package workload

import "time"

// CommandTag is the closed set of operations a work item may carry.
type CommandTag string

const (
	Get               CommandTag = "get"
	Set               CommandTag = "set"
	Delete            CommandTag = "delete"
	HashGet           CommandTag = "hash_get"
	HashSet           CommandTag = "hash_set"
	HashDelete        CommandTag = "hash_delete"
	HashExists        CommandTag = "hash_exists"
	HashIncrement     CommandTag = "hash_increment"
	HashMultiGet      CommandTag = "hash_multi_get"
	ListPushFront     CommandTag = "list_push_front"
	ListPushBack      CommandTag = "list_push_back"
	ListPopFront      CommandTag = "list_pop_front"
	ListPopBack       CommandTag = "list_pop_back"
	ListRange         CommandTag = "list_range"
	ListFetch         CommandTag = "list_fetch"
	ListLength        CommandTag = "list_length"
	ListRemove        CommandTag = "list_remove"
	ListStore         CommandTag = "list_store"
	MultiGet          CommandTag = "multi_get"
	SetAdd            CommandTag = "set_add"
	SetMembers        CommandTag = "set_members"
	SetRemove         CommandTag = "set_remove"
	SortedSetAdd      CommandTag = "sorted_set_add"
	SortedSetMembers  CommandTag = "sorted_set_members"
	SortedSetIncrement CommandTag = "sorted_set_increment"
	SortedSetRank     CommandTag = "sorted_set_rank"
	SortedSetRemove   CommandTag = "sorted_set_remove"
	SortedSetScore    CommandTag = "sorted_set_score"
	Ping              CommandTag = "ping"
	Publish           CommandTag = "publish"
	Reconnect         CommandTag = "reconnect"
)

// writeCommands is the subset of CommandTag that mutates the target and
// therefore requires a configured value distribution (see
// internal/workload/validate).
var writeCommands = map[CommandTag]bool{
	Set:                true,
	Delete:             true,
	HashSet:            true,
	HashDelete:         true,
	HashIncrement:      true,
	ListPushFront:      true,
	ListPushBack:       true,
	ListPopFront:       true,
	ListPopBack:        true,
	ListRemove:         true,
	ListStore:          true,
	SetAdd:             true,
	SetRemove:          true,
	SortedSetAdd:       true,
	SortedSetIncrement: true,
	SortedSetRemove:    true,
	Publish:            true,
}

// IsWrite reports whether c mutates state at the target, and therefore
// needs a value drawn from the keyspace's value distribution.
func (c CommandTag) IsWrite() bool { return writeCommands[c] }

// innerKeyCommands address a field within a hash value and therefore
// need an inner-key distribution.
var innerKeyCommands = map[CommandTag]bool{
	HashGet: true, HashSet: true, HashDelete: true, HashExists: true,
	HashIncrement: true, HashMultiGet: true,
}

// NeedsInnerKey reports whether c addresses an inner key/field.
func (c CommandTag) NeedsInnerKey() bool { return innerKeyCommands[c] }

// KeyType selects the byte shape of generated keys.
type KeyType string

const (
	Alphanumeric KeyType = "alphanumeric"
	U32          KeyType = "u32"
)

// DistributionModel selects the shape of the key-index distribution.
type DistributionModel string

const (
	Uniform DistributionModel = "uniform"
	Zipf    DistributionModel = "zipf"
)

// KeyDistribution describes how key indices in [0, cardinality) are drawn.
type KeyDistribution struct {
	Model      DistributionModel `yaml:"model"`
	Parameters DistributionParams `yaml:"parameters"`
}

// DistributionParams carries distribution-specific knobs. Only Exponent is
// meaningful, and only for Zipf.
type DistributionParams struct {
	Exponent float64 `yaml:"exponent"`
}

// FieldType selects how value/inner-key bytes are synthesized. Today this
// mirrors KeyType one-for-one but is kept as a distinct type since key
// shape and value shape are configured independently.
type FieldType string

const (
	FieldAlphanumeric FieldType = "alphanumeric"
	FieldU32          FieldType = "u32"
)

// WeightedCommand pairs a command with its selection weight within a
// keyspace's command-alias table.
type WeightedCommand struct {
	Verb   CommandTag `yaml:"verb"`
	Weight int        `yaml:"weight"`
}

// InnerKeySpec describes one shape of inner key/field a keyspace may
// generate, with its own length/cardinality/selection weight.
type InnerKeySpec struct {
	Length      int       `yaml:"length"`
	Cardinality int       `yaml:"cardinality"`
	FieldType   FieldType `yaml:"field_type"`
	Weight      int       `yaml:"weight"`
}

// ValueSpec describes one shape of value bytes a keyspace may generate.
type ValueSpec struct {
	Length    int       `yaml:"length"`
	FieldType FieldType `yaml:"field_type"`
	Weight    int       `yaml:"weight"`
}

// TopicSpec names one pub/sub topic a Publish command may target, with its
// own selection weight. Topic fan-out is typically a small fixed set of
// channel names rather than a cardinality-bounded index space, so topics
// are named directly instead of synthesized like keys.
type TopicSpec struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
}

// Keyspace is an immutable policy object describing how to synthesize one
// class of keys and the commands issued against them.
type Keyspace struct {
	Length          int               `yaml:"length"`
	Weight          int               `yaml:"weight"`
	Cardinality     int               `yaml:"cardinality"`
	TTL             time.Duration     `yaml:"ttl,omitempty"`
	BatchSize       int               `yaml:"batch_size,omitempty"`
	KeyType         KeyType           `yaml:"key_type"`
	KeyDistribution KeyDistribution   `yaml:"key_distribution"`
	Commands        []WeightedCommand `yaml:"commands"`
	InnerKeys       []InnerKeySpec    `yaml:"inner_keys,omitempty"`
	Values          []ValueSpec       `yaml:"values,omitempty"`
	Topics          []TopicSpec       `yaml:"topics,omitempty"`

	// Name is an optional human label surfaced in snapshots and logs; it
	// plays no role in sampling.
	Name string `yaml:"name,omitempty"`
}

// HasWriteCommand reports whether any configured command mutates state.
func (k *Keyspace) HasWriteCommand() bool {
	for _, c := range k.Commands {
		if c.Verb.IsWrite() {
			return true
		}
	}
	return false
}

// HasInnerKeyCommand reports whether any configured command addresses an
// inner key/field.
func (k *Keyspace) HasInnerKeyCommand() bool {
	for _, c := range k.Commands {
		if c.Verb.NeedsInnerKey() {
			return true
		}
	}
	return false
}

// HasPublishCommand reports whether this keyspace's command set includes
// Publish, and therefore needs a configured topic set.
func (k *Keyspace) HasPublishCommand() bool {
	for _, c := range k.Commands {
		if c.Verb == Publish {
			return true
		}
	}
	return false
}
