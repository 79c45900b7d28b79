// Package citation builds, renders and edits CITATION.cff documents.
package citation

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixed values of every generated record.
const (
	CFFVersion           = "1.2.0"
	Message              = "If you use this software, please cite it as below."
	TypeSoftware         = "software"
	DOIIdentifierType    = "doi"
	DOIIdentifierDetails = "DOI for this software's record on Zenodo"
	dateLayout           = "2006-01-02"
)

// Author is a person listed in the citation. Fields are declared in key order
// so that rendering is deterministic.
type Author struct {
	Affiliation string `yaml:"affiliation,omitempty"`
	Alias       string `yaml:"alias,omitempty"`
	Email       string `yaml:"email,omitempty"`
	FamilyNames string `yaml:"family-names,omitempty"`
	GivenNames  string `yaml:"given-names,omitempty"`
}

// Identifier is a persistent identifier of the software.
type Identifier struct {
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Value       string `yaml:"value"`
}

// Record is a CITATION.cff document. Fields are declared in alphabetical key
// order.
type Record struct {
	Abstract       string       `yaml:"abstract,omitempty"`
	Authors        []Author     `yaml:"authors,omitempty"`
	CFFVersion     string       `yaml:"cff-version"`
	DateReleased   string       `yaml:"date-released,omitempty"`
	Identifiers    []Identifier `yaml:"identifiers"`
	Keywords       []string     `yaml:"keywords,omitempty"`
	License        string       `yaml:"license,omitempty"`
	Message        string       `yaml:"message"`
	RepositoryCode string       `yaml:"repository-code"`
	Title          string       `yaml:"title"`
	Type           string       `yaml:"type"`
	URL            string       `yaml:"url,omitempty"`
}

// Render serializes r as YAML.
func (r Record) Render() (string, error) {
	return encode(r)
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to render citation: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render citation: %w", err)
	}
	return buf.String(), nil
}

// Map converts r to a generic mapping.
func (r Record) Map() (map[string]any, error) {
	text, err := r.Render()
	if err != nil {
		return nil, err
	}
	return ParseMap(text)
}

// Parse decodes a CITATION.cff document. Unknown keys are ignored.
func Parse(text string) (Record, error) {
	var r Record
	if err := yaml.Unmarshal([]byte(text), &r); err != nil {
		return Record{}, fmt.Errorf("failed to parse citation: %w", err)
	}
	return r, nil
}

// ParseMap decodes a YAML mapping, keeping every key.
func ParseMap(text string) (map[string]any, error) {
	m := map[string]any{}
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("failed to parse citation: %w", err)
	}
	return m, nil
}

// RenderMap serializes a mapping with its keys in sorted order.
func RenderMap(m map[string]any) (string, error) {
	return encode(m)
}

// ParseAuthorName splits a display name on its last space into given and
// family names. A single word becomes the given name.
func ParseAuthorName(name string) (given, family string) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", ""
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}
