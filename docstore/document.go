package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is one stored JSON object.
type Document map[string]any

// Filter selects documents whose top-level fields equal the given values.
// An empty filter matches everything.
type Filter map[string]any

// Matches reports whether d satisfies every field of f. Values are compared
// by their JSON encoding so 50, int64(50) and json.Number("50") are equal.
func (f Filter) Matches(d Document) bool {
	for k, want := range f {
		got, ok := d[k]
		if !ok || !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Namespace joins a database and collection name the way collections are
// addressed in a Store, e.g. "covid_case.daily".
func Namespace(database, collection string) string {
	if database == "" {
		return collection
	}
	return database + "." + collection
}

func encode(d Document) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

func decode(body string) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var d Document
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

// clone copies d so callers cannot mutate stored state.
func clone(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
