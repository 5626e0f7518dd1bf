package model

import (
	"encoding/json"
	"maps"
)

// Manifest is the optional innersource.json metadata of a repository.
// Unknown fields are kept in Extra and written back unchanged.
type Manifest struct {
	Title         string
	Motivation    string
	Contributions []string
	Skills        []string
	Logo          string
	Docs          string
	Language      string
	License       string
	Topics        []string
	Score         *int
	Extra         map[string]any

	// empty marks the placeholder written for repositories without a file.
	empty bool
}

// EmptyManifest returns the placeholder serialized as {} for repositories
// without an innersource.json.
func EmptyManifest() *Manifest {
	return &Manifest{empty: true}
}

// IsEmpty reports whether m is the placeholder.
func (m *Manifest) IsEmpty() bool {
	return m == nil || m.empty
}

// Clone returns a deep copy of m.
func (m Manifest) Clone() Manifest {
	out := m
	out.Contributions = append([]string(nil), m.Contributions...)
	out.Skills = append([]string(nil), m.Skills...)
	out.Topics = append([]string(nil), m.Topics...)
	if m.Score != nil {
		s := *m.Score
		out.Score = &s
	}
	if m.Extra != nil {
		out.Extra = maps.Clone(m.Extra)
	}
	return out
}

// manifestFields is the canonical key set of innersource.json.
var manifestFields = []string{
	"title", "motivation", "contributions", "skills", "logo", "docs",
	"language", "license", "topics", "score",
}

// MarshalJSON writes known fields first and merges Extra underneath them.
func (m Manifest) MarshalJSON() ([]byte, error) {
	if m.empty {
		return []byte("{}"), nil
	}
	out := make(map[string]any, len(m.Extra)+len(manifestFields))
	maps.Copy(out, m.Extra)
	setString(out, "title", m.Title)
	setString(out, "motivation", m.Motivation)
	setString(out, "logo", m.Logo)
	setString(out, "docs", m.Docs)
	setString(out, "language", m.Language)
	setString(out, "license", m.License)
	if m.Contributions != nil {
		out["contributions"] = m.Contributions
	}
	if m.Skills != nil {
		out["skills"] = m.Skills
	}
	if m.Topics != nil {
		out["topics"] = m.Topics
	}
	if m.Score != nil {
		out["score"] = *m.Score
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads known fields and keeps the rest in Extra. A
// contributions value given as a single string is read as one entry.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Manifest{}
	if len(raw) == 0 {
		m.empty = true
		return nil
	}

	var err error
	read := func(key string, dst any) {
		if err != nil {
			return
		}
		if v, ok := raw[key]; ok {
			err = json.Unmarshal(v, dst)
		}
	}
	read("title", &m.Title)
	read("motivation", &m.Motivation)
	read("logo", &m.Logo)
	read("docs", &m.Docs)
	read("language", &m.Language)
	read("license", &m.License)
	read("score", &m.Score)
	if err != nil {
		return err
	}
	m.Skills = stringsOnly(raw["skills"])
	m.Topics = stringsOnly(raw["topics"])
	m.Contributions = stringList(raw["contributions"])

	for _, k := range manifestFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		m.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			m.Extra[k] = val
		}
	}
	return nil
}

// stringList reads contributions. A list keeps one entry per element, with
// non-string elements kept as their JSON text. A single string counts as one
// entry rather than one per character. Anything else reads as none.
func stringList(v json.RawMessage) []string {
	var val any
	if err := json.Unmarshal(v, &val); err != nil {
		return nil
	}
	switch t := val.(type) {
	case string:
		return []string{t}
	case []any:
		list := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				list = append(list, s)
				continue
			}
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			list = append(list, string(b))
		}
		return list
	}
	return nil
}

// stringsOnly reads a list of labels, dropping elements that are not strings.
func stringsOnly(v json.RawMessage) []string {
	var elems []any
	if err := json.Unmarshal(v, &elems); err != nil || elems == nil {
		return nil
	}
	list := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			list = append(list, s)
		}
	}
	return list
}

func setString(out map[string]any, key, val string) {
	if val != "" {
		out[key] = val
	}
}
