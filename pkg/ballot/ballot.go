// Package ballot validates untrusted vote payloads before they are encrypted.
//
// A ballot is a flat JSON object mapping candidate names to non-negative
// integer allocations, e.g. {"Alice": 50, "Bob": 30, "scheda bianca": 0}.
package ballot

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/taurusgroup/paillier-tally/internal/params"
)

// Ballot maps a candidate name to the number of points allocated to it.
type Ballot map[string]uint64

// Candidates returns the candidate names in sorted order.
func (b Ballot) Candidates() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total returns the sum of all allocations. Validate guarantees it does not overflow.
func (b Ballot) Total() uint64 {
	var total uint64
	for _, v := range b {
		total += v
	}
	return total
}

// Policy holds the rules a ballot is checked against.
type Policy struct {
	// Cap is the maximum allowed sum of allocations.
	Cap uint64
	// RequireAllocation rejects the empty ballot {}.
	RequireAllocation bool
	// Candidates restricts the accepted names. Any name is accepted when empty.
	Candidates []string
}

// Allows reports whether name may appear on a ballot.
func (p Policy) Allows(name string) bool {
	if len(p.Candidates) == 0 {
		return true
	}
	for _, c := range p.Candidates {
		if c == name {
			return true
		}
	}
	return false
}

// DefaultPolicy accepts any candidate name, with a cap of params.DefaultBallotCap.
func DefaultPolicy() Policy {
	return Policy{Cap: params.DefaultBallotCap}
}

type entry struct {
	name  string
	value interface{}
}

// Validate parses raw and checks it against policy.
//
// Rules are applied in this order, and the first violation is returned as a
// *ValidationError:
//   - raw is a single flat JSON object (NotAnObject), nested values included;
//   - every value is a non-negative integer literal (NonIntegerValue, NegativeValue);
//   - no name appears twice (DuplicateCandidate);
//   - every name is in policy.Candidates, when set (UnknownCandidate);
//   - the sum is at most policy.Cap (CapExceeded);
//   - the ballot is not empty, when policy.RequireAllocation is set (EmptyBallot).
//
// Candidate names are returned verbatim.
func Validate(raw []byte, policy Policy) (Ballot, error) {
	entries, err := parseObject(raw)
	if err != nil {
		return nil, err
	}

	values := make([]*big.Int, len(entries))
	for i, e := range entries {
		v, err := integer(e)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.name]; ok {
			return nil, newError(DuplicateCandidate, e.name, "listed more than once")
		}
		seen[e.name] = struct{}{}
	}

	if len(policy.Candidates) > 0 {
		allowed := make(map[string]struct{}, len(policy.Candidates))
		for _, c := range policy.Candidates {
			allowed[c] = struct{}{}
		}
		for _, e := range entries {
			if _, ok := allowed[e.name]; !ok {
				return nil, newError(UnknownCandidate, e.name, "not among the %d candidates", len(policy.Candidates))
			}
		}
	}

	sum := new(big.Int)
	for _, v := range values {
		sum.Add(sum, v)
	}
	if sum.Cmp(new(big.Int).SetUint64(policy.Cap)) > 0 {
		return nil, newError(CapExceeded, "", "total %s is above the cap of %d", sum, policy.Cap)
	}

	if len(entries) == 0 && policy.RequireAllocation {
		return nil, newError(EmptyBallot, "", "at least one allocation is required")
	}

	b := make(Ballot, len(entries))
	for i, e := range entries {
		// sum ≤ Cap so every value fits in 64 bits
		b[e.name] = values[i].Uint64()
	}
	return b, nil
}

// parseObject reads a single flat object, keeping duplicate keys and their order.
func parseObject(raw []byte) ([]entry, error) {
	// the decoder would replace invalid bytes in names with U+FFFD
	if !utf8.Valid(raw) {
		return nil, newError(NotAnObject, "", "invalid UTF-8")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, newError(NotAnObject, "", "malformed JSON")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, newError(NotAnObject, "", "expected an object, got %s", describe(tok))
	}

	var entries []entry
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, newError(NotAnObject, "", "malformed JSON")
		}
		name, ok := tok.(string)
		if !ok {
			return nil, newError(NotAnObject, "", "malformed JSON")
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, newError(NotAnObject, name, "malformed JSON")
		}
		if _, ok := tok.(json.Delim); ok {
			return nil, newError(NotAnObject, name, "nested %s are not allowed", describe(tok))
		}
		entries = append(entries, entry{name: name, value: tok})
	}
	// closing '}'
	if _, err = dec.Token(); err != nil {
		return nil, newError(NotAnObject, "", "malformed JSON")
	}
	if _, err = dec.Token(); !errors.Is(err, io.EOF) {
		return nil, newError(NotAnObject, "", "trailing data after the object")
	}
	return entries, nil
}

func integer(e entry) (*big.Int, error) {
	n, ok := e.value.(json.Number)
	if !ok {
		return nil, newError(NonIntegerValue, e.name, "got %s", describe(e.value))
	}
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return nil, newError(NonIntegerValue, e.name, "got %s", s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, newError(NonIntegerValue, e.name, "got %s", s)
	}
	if v.Sign() < 0 {
		return nil, newError(NegativeValue, e.name, "got %s", s)
	}
	return v, nil
}

func describe(tok interface{}) string {
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' {
			return "objects"
		}
		return "arrays"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	case json.Number:
		return "a number"
	default:
		return "an unexpected value"
	}
}
