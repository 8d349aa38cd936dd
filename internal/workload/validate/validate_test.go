package validate

import (
	"testing"

	"github.com/jihwankim/cachebench/internal/workload"
)

func readOnlyKeyspace() workload.Keyspace {
	return workload.Keyspace{
		Length:          8,
		Weight:          1,
		Cardinality:     1000,
		KeyType:         workload.Alphanumeric,
		KeyDistribution: workload.KeyDistribution{Model: workload.Uniform},
		Commands:        []workload.WeightedCommand{{Verb: workload.Get, Weight: 1}},
	}
}

func TestValidateAllAcceptsReadOnlyKeyspace(t *testing.T) {
	v := New()
	if err := v.ValidateAll([]workload.Keyspace{readOnlyKeyspace()}); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, v.Report())
	}
}

func TestValidateAllRejectsMissingValuesOnWrite(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Set, Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for write command with no values configured")
	}
}

func TestValidateAllAcceptsWriteWithValues(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Set, Weight: 1}}
	k.Values = []workload.ValueSpec{{Length: 16, FieldType: workload.FieldAlphanumeric, Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, v.Report())
	}
}

func TestValidateAllRejectsMissingInnerKeysOnHashCommand(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.HashGet, Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for hash command with no inner_keys configured")
	}
}

func TestValidateAllRejectsU32CardinalityOverflow(t *testing.T) {
	k := readOnlyKeyspace()
	k.KeyType = workload.U32
	k.Length = 2
	k.Cardinality = 1000 // needs 4 digits, only 2 available

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for cardinality exceeding 10^length")
	}
}

func TestValidateAllRejectsZeroCommandWeightSum(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Get, Weight: 0}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for zero command weight sum")
	}
}

func TestValidateAllRejectsEmptyKeyspaceList(t *testing.T) {
	v := New()
	if err := v.ValidateAll(nil); err == nil {
		t.Fatal("expected validation error for empty keyspace list")
	}
}

func TestValidateAllWarnsOnUnusedValues(t *testing.T) {
	k := readOnlyKeyspace()
	k.Values = []workload.ValueSpec{{Length: 8, FieldType: workload.FieldAlphanumeric, Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.HasWarnings() {
		t.Fatal("expected a warning for values configured on a read-only keyspace")
	}
}

func TestValidateAllRejectsPublishWithNoTopics(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Publish, Weight: 1}}
	k.Values = []workload.ValueSpec{{Length: 8, FieldType: workload.FieldAlphanumeric, Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for publish command with no topics configured")
	}
}

func TestValidateAllRejectsPublishWithEmptyTopicName(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Publish, Weight: 1}}
	k.Values = []workload.ValueSpec{{Length: 8, FieldType: workload.FieldAlphanumeric, Weight: 1}}
	k.Topics = []workload.TopicSpec{{Name: "", Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for a topic entry with an empty name")
	}
}

func TestValidateAllRejectsZeroTopicWeightSum(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Publish, Weight: 1}}
	k.Values = []workload.ValueSpec{{Length: 8, FieldType: workload.FieldAlphanumeric, Weight: 1}}
	k.Topics = []workload.TopicSpec{{Name: "orders", Weight: 0}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err == nil {
		t.Fatal("expected validation error for zero topic weight sum")
	}
}

func TestValidateAllAcceptsPublishWithTopics(t *testing.T) {
	k := readOnlyKeyspace()
	k.Commands = []workload.WeightedCommand{{Verb: workload.Publish, Weight: 1}}
	k.Values = []workload.ValueSpec{{Length: 8, FieldType: workload.FieldAlphanumeric, Weight: 1}}
	k.Topics = []workload.TopicSpec{{Name: "orders", Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, v.Report())
	}
}

func TestValidateAllWarnsOnUnusedTopics(t *testing.T) {
	k := readOnlyKeyspace()
	k.Topics = []workload.TopicSpec{{Name: "orders", Weight: 1}}

	v := New()
	if err := v.ValidateAll([]workload.Keyspace{k}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.HasWarnings() {
		t.Fatal("expected a warning for topics configured on a keyspace with no publish command")
	}
}
