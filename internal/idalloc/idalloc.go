// Package idalloc allocates human-readable sequential identifiers such as
// "BR-T1-004" or "AC-SR-T1-002-001".
//
// Allocation is a pure function of its inputs: the next identifier is one
// past the highest numeric suffix among the existing identifiers that share
// the prefix. Identifiers with a different prefix, or whose remainder is not
// purely digits, are ignored.
package idalloc

import (
	"math/big"
	"strings"
)

// DefaultPad is the zero-pad width used for requirement and criterion IDs.
const DefaultPad = 3

// NextSequentialID returns the next unused identifier for prefix.
//
// Only identifiers of the form prefix + digits take part. The result is
// prefix followed by max(suffix)+1, zero-padded to padLength. When no
// identifier matches, the suffix starts at 1. A number wider than padLength
// is rendered in full, never truncated. padLength <= 0 disables padding.
// Suffixes are not bounded by any integer width.
func NextSequentialID(prefix string, existing []string, padLength int) string {
	return format(prefix, successor(maxSuffix(prefix, existing)), padLength)
}

// NextSequentialIDFrom applies NextSequentialID to the identifiers projected
// out of records by id. The projection is called exactly once per record.
func NextSequentialIDFrom[T any](prefix string, records []T, id func(T) string, padLength int) string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, id(r))
	}
	return NextSequentialID(prefix, ids, padLength)
}

// Suffix extracts the numeric suffix of id if it is prefix followed by one
// or more ASCII digits.
func Suffix(prefix, id string) (*big.Int, bool) {
	if !strings.HasPrefix(id, prefix) {
		return nil, false
	}
	rest := id[len(prefix):]
	if rest == "" {
		return nil, false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return nil, false
		}
	}
	return new(big.Int).SetString(rest, 10)
}

func maxSuffix(prefix string, existing []string) *big.Int {
	max := new(big.Int)
	for _, id := range existing {
		if n, ok := Suffix(prefix, id); ok && n.Cmp(max) > 0 {
			max = n
		}
	}
	return max
}

var one = big.NewInt(1)

func successor(n *big.Int) *big.Int {
	return new(big.Int).Add(n, one)
}

func format(prefix string, n *big.Int, padLength int) string {
	digits := n.String()
	if pad := padLength - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return prefix + digits
}

// BusinessRequirementPrefix returns the ID prefix for business requirements
// of a task, e.g. "BR-T1-".
func BusinessRequirementPrefix(taskID string) string {
	return "BR-" + taskID + "-"
}

// SystemRequirementPrefix returns the ID prefix for system requirements of
// a task, e.g. "SR-T1-".
func SystemRequirementPrefix(taskID string) string {
	return "SR-" + taskID + "-"
}

// CriterionPrefix returns the ID prefix for acceptance criteria owned by a
// requirement, e.g. "AC-BR-T1-001-".
func CriterionPrefix(ownerID string) string {
	return "AC-" + ownerID + "-"
}
