package criteria

import (
	"encoding/json"
)

// Normalize turns a loosely-typed acceptance-criteria payload into a
// well-typed list. It never fails: anything that is not a list of objects
// yields an empty list, entries without any text field are dropped, and
// missing or non-string fields become "".
//
// Accepted inputs are []Criterion, []map[string]any, []any (as produced by
// encoding/json), and JSON text as []byte, json.RawMessage or string. Keys
// may be camelCase (givenText) or snake_case (given_text).
func Normalize(raw any) []Criterion {
	out := []Criterion{}
	switch v := raw.(type) {
	case nil:
	case []Criterion:
		for _, c := range v {
			if c.hasContent() {
				out = append(out, c)
			}
		}
	case []map[string]any:
		for _, m := range v {
			if c, ok := fromMap(m); ok {
				out = append(out, c)
			}
		}
	case []any:
		for _, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if c, ok := fromMap(m); ok {
				out = append(out, c)
			}
		}
	case json.RawMessage:
		return NormalizeJSON(v)
	case []byte:
		return NormalizeJSON(v)
	case string:
		return NormalizeJSON([]byte(v))
	}
	return out
}

// NormalizeJSON parses persisted acceptance_criteria_json text. Empty,
// invalid, or non-array JSON yields an empty list.
func NormalizeJSON(data []byte) []Criterion {
	if len(data) == 0 {
		return []Criterion{}
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []Criterion{}
	}
	return Normalize(raw)
}

// MarshalJSON encodes a structured list for storage. A nil list encodes as
// "[]" so the column never holds null.
func MarshalJSON(structured []Criterion) ([]byte, error) {
	if structured == nil {
		structured = []Criterion{}
	}
	return json.Marshal(structured)
}

var fieldKeys = map[string][]string{
	"id":                 {"id"},
	"description":        {"description"},
	"givenText":          {"givenText", "given_text"},
	"whenText":           {"whenText", "when_text"},
	"thenText":           {"thenText", "then_text"},
	"verificationMethod": {"verificationMethod", "verification_method"},
}

func fromMap(m map[string]any) (Criterion, bool) {
	c := Criterion{
		ID:                 stringField(m, "id"),
		Description:        stringField(m, "description"),
		GivenText:          stringField(m, "givenText"),
		WhenText:           stringField(m, "whenText"),
		ThenText:           stringField(m, "thenText"),
		VerificationMethod: stringField(m, "verificationMethod"),
	}
	return c, c.hasContent()
}

func stringField(m map[string]any, field string) string {
	for _, k := range fieldKeys[field] {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}
