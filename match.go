package drawsheet

import "strings"

// MatchName reconciles a canonical component name against free-text
// candidate names coming back from the model. Tiers, strongest first:
//
//  1. case-insensitive exact match
//  2. substring containment, either direction, case-insensitive
//  3. shared word token
//  4. first candidate as a documented best effort
//
// Returns the index of the best candidate; ok is false only when the
// candidate list is empty. Ties within a tier resolve to the earliest
// candidate, so output is deterministic for a given candidate order.
func MatchName(expected string, candidates []string) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	want := strings.ToLower(strings.TrimSpace(expected))

	for i, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			return i, true
		}
	}
	if want != "" {
		for i, c := range candidates {
			have := strings.ToLower(strings.TrimSpace(c))
			if have == "" {
				continue
			}
			if strings.Contains(have, want) || strings.Contains(want, have) {
				return i, true
			}
		}
		wantTokens := tokenSet(want)
		for i, c := range candidates {
			for token := range tokenSet(strings.ToLower(c)) {
				if _, shared := wantTokens[token]; shared {
					return i, true
				}
			}
		}
	}
	return 0, true // best effort, not a failure
}

// MatchComponent applies MatchName over extracted components.
func MatchComponent(expected string, candidates []ExtractedComponent) (ExtractedComponent, bool) {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	idx, ok := MatchName(expected, names)
	if !ok {
		return ExtractedComponent{}, false
	}
	return candidates[idx], true
}

// MatchComponents maps every canonical component of a schema onto its best
// extracted candidate. This is the lookup the report renderer uses to decide
// which component fills which table row; names absent from the result were
// unmatched only because the candidate list was empty.
func MatchComponents(schema EquipmentSchema, extracted []ExtractedComponent) map[string]ExtractedComponent {
	out := make(map[string]ExtractedComponent, len(schema.ComponentNames()))
	for _, name := range schema.ComponentNames() {
		if match, ok := MatchComponent(name, extracted); ok {
			out[name] = match
		}
	}
	return out
}

// tokenSet splits a name into lowercase word tokens on any non-alphanumeric
// rune.
func tokenSet(s string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isAlphanumeric(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func isAlphanumeric(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
