// Package validate checks workload.Keyspace values against the invariants
// required before any sampler is built from them.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/jihwankim/cachebench/internal/workload"
)

// Validator accumulates fatal errors and non-fatal warnings across one or
// more keyspaces rather than failing fast on the first problem.
type Validator struct {
	Warnings []string
	Errors   []string
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{Warnings: []string{}, Errors: []string{}}
}

// ValidateAll validates every keyspace and the keyspace-weight invariant
// across the set. It returns an error summarizing the fatal problems; call
// Report for the full text including warnings.
func (v *Validator) ValidateAll(keyspaces []workload.Keyspace) error {
	v.Warnings = v.Warnings[:0]
	v.Errors = v.Errors[:0]

	if len(keyspaces) == 0 {
		v.Errors = append(v.Errors, "keyspaces: at least one keyspace is required")
	}

	totalWeight := 0
	for i := range keyspaces {
		v.validateKeyspace(i, &keyspaces[i])
		totalWeight += keyspaces[i].Weight
	}
	if totalWeight <= 0 && len(keyspaces) > 0 {
		v.Errors = append(v.Errors, "keyspaces: sum of keyspace weights must be > 0")
	}

	if len(v.Errors) > 0 {
		return fmt.Errorf("keyspace validation failed with %d error(s)", len(v.Errors))
	}
	return nil
}

func (v *Validator) validateKeyspace(idx int, k *workload.Keyspace) {
	label := keyspaceLabel(idx, k)

	if k.Length <= 0 {
		v.fail("%s: length must be > 0", label)
	}
	if k.Weight < 1 {
		v.fail("%s: weight must be >= 1", label)
	}
	if k.Cardinality < 1 {
		v.fail("%s: cardinality must be >= 1", label)
	}

	switch k.KeyType {
	case workload.Alphanumeric, workload.U32:
	default:
		v.fail("%s: key_type must be alphanumeric or u32, got %q", label, k.KeyType)
	}

	if k.KeyType == workload.U32 && k.Length > 0 && k.Cardinality > 0 {
		// A cardinality whose decimal form cannot fit in `length` digits
		// would make some indices indistinguishable once zero-padded.
		maxRepresentable := math.Pow10(k.Length)
		if float64(k.Cardinality) > maxRepresentable {
			v.fail("%s: cardinality %d exceeds 10^length (%d digits)", label, k.Cardinality, k.Length)
		}
	}

	switch k.KeyDistribution.Model {
	case workload.Uniform:
	case workload.Zipf:
		if k.KeyDistribution.Parameters.Exponent <= 0 {
			v.fail("%s: zipf exponent must be > 0", label)
		}
	default:
		v.fail("%s: key_distribution.model must be uniform or zipf, got %q", label, k.KeyDistribution.Model)
	}

	if len(k.Commands) == 0 {
		v.fail("%s: at least one command is required", label)
	}
	cmdWeight := 0
	for _, c := range k.Commands {
		cmdWeight += c.Weight
	}
	if cmdWeight <= 0 {
		v.fail("%s: sum of command weights must be > 0", label)
	}

	if k.HasInnerKeyCommand() {
		if len(k.InnerKeys) == 0 {
			v.fail("%s: commands require an inner key but inner_keys is empty", label)
		}
		innerWeight := 0
		for _, ik := range k.InnerKeys {
			innerWeight += ik.Weight
			if ik.Length <= 0 {
				v.fail("%s: inner_keys entry has length <= 0", label)
			}
			if ik.Cardinality < 1 {
				v.fail("%s: inner_keys entry has cardinality < 1", label)
			}
		}
		if innerWeight <= 0 {
			v.fail("%s: sum of inner_key weights must be > 0", label)
		}
	} else if len(k.InnerKeys) > 0 {
		v.warn("%s: inner_keys configured but no command in this keyspace addresses an inner key", label)
	}

	// Resolve Open Question 1 (DESIGN.md): values are required exactly
	// when the command set writes, never required for read-only keyspaces.
	if k.HasWriteCommand() {
		if len(k.Values) == 0 {
			v.fail("%s: command set includes a write but values is empty", label)
		}
		valWeight := 0
		for _, val := range k.Values {
			valWeight += val.Weight
			if val.Length <= 0 {
				v.fail("%s: values entry has length <= 0", label)
			}
		}
		if valWeight <= 0 {
			v.fail("%s: sum of value weights must be > 0", label)
		}
	} else if len(k.Values) > 0 {
		v.warn("%s: values configured but no command in this keyspace writes", label)
	}

	if k.HasPublishCommand() {
		if len(k.Topics) == 0 {
			v.fail("%s: command set includes publish but topics is empty", label)
		}
		topicWeight := 0
		for _, topic := range k.Topics {
			topicWeight += topic.Weight
			if topic.Name == "" {
				v.fail("%s: topics entry has empty name", label)
			}
		}
		if topicWeight <= 0 {
			v.fail("%s: sum of topic weights must be > 0", label)
		}
	} else if len(k.Topics) > 0 {
		v.warn("%s: topics configured but no command in this keyspace publishes", label)
	}

	if k.BatchSize < 0 {
		v.fail("%s: batch_size must be >= 0", label)
	}
}

func (v *Validator) fail(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validator) warn(format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func keyspaceLabel(idx int, k *workload.Keyspace) string {
	if k.Name != "" {
		return fmt.Sprintf("keyspace[%d] %q", idx, k.Name)
	}
	return fmt.Sprintf("keyspace[%d]", idx)
}

// HasErrors reports whether the last ValidateAll call found fatal errors.
func (v *Validator) HasErrors() bool { return len(v.Errors) > 0 }

// HasWarnings reports whether the last ValidateAll call found warnings.
func (v *Validator) HasWarnings() bool { return len(v.Warnings) > 0 }

// Report renders accumulated warnings and errors as text.
func (v *Validator) Report() string {
	var sb strings.Builder
	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, e := range v.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
	}
	if len(v.Warnings) > 0 {
		sb.WriteString("WARNINGS:\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w)
		}
	}
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("validation passed with no issues\n")
	}
	return sb.String()
}
