// Package spdx provides the bundled SPDX license list and license text
// retrieval.
package spdx

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/danielolaszy/codefair/internal/logging"
)

//go:embed licenses.json
var bundled []byte

// ErrUnknownLicense is returned for identifiers absent from the catalog.
var ErrUnknownLicense = errors.New("spdx: unknown license identifier")

// License is one entry of the SPDX license list.
type License struct {
	ID          string   `json:"licenseId"`
	Name        string   `json:"name"`
	Reference   string   `json:"reference"`
	DetailsURL  string   `json:"detailsUrl"`
	OSIApproved bool     `json:"isOsiApproved"`
	Deprecated  bool     `json:"isDeprecatedLicenseId"`
	SeeAlso     []string `json:"seeAlso"`
}

type document struct {
	Version  string    `json:"licenseListVersion"`
	Licenses []License `json:"licenses"`
}

type details struct {
	LicenseText string `json:"licenseText"`
}

// Catalog is an immutable, indexed SPDX license list.
type Catalog struct {
	version  string
	licenses []License
	byID     map[string]License
	http     *http.Client
}

// Load returns the catalog stored at path, or the bundled catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(bundled)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spdx catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from an SPDX licenses.json document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse spdx catalog: %w", err)
	}
	if len(doc.Licenses) == 0 {
		return nil, fmt.Errorf("spdx catalog contains no licenses")
	}

	c := &Catalog{
		version: doc.Version,
		byID:    make(map[string]License, len(doc.Licenses)),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, l := range doc.Licenses {
		if l.ID == "" {
			continue
		}
		if l.Name == "" {
			l.Name = l.ID
		}
		c.byID[l.ID] = l
		c.licenses = append(c.licenses, l)
	}
	sort.Slice(c.licenses, func(i, j int) bool { return c.licenses[i].ID < c.licenses[j].ID })

	logging.Debug("loaded spdx catalog", "version", c.version, "licenses", len(c.licenses))
	return c, nil
}

// WithHTTPClient replaces the client used to fetch license details.
func (c *Catalog) WithHTTPClient(client *http.Client) *Catalog {
	c.http = client
	return c
}

// Version is the SPDX license list version.
func (c *Catalog) Version() string {
	return c.version
}

// Licenses returns every entry ordered by identifier.
func (c *Catalog) Licenses() []License {
	return append([]License(nil), c.licenses...)
}

// Lookup finds a license by its exact, case-sensitive identifier.
func (c *Catalog) Lookup(id string) (License, error) {
	l, ok := c.byID[id]
	if !ok {
		return License{}, fmt.Errorf("%q: %w", id, ErrUnknownLicense)
	}
	return l, nil
}

// FetchText downloads the canonical license text from the entry's details
// document.
func (c *Catalog) FetchText(ctx context.Context, id string) (string, error) {
	l, err := c.Lookup(id)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.DetailsURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build spdx details request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Error("failed to fetch spdx license details", "license", id, "url", l.DetailsURL, "error", err)
		return "", fmt.Errorf("failed to fetch license details for %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logging.Error("unexpected spdx details status", "license", id, "status", resp.StatusCode)
		return "", fmt.Errorf("license details for %s returned status %d: %s", id, resp.StatusCode, string(body))
	}

	var d details
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return "", fmt.Errorf("failed to decode license details for %s: %w", id, err)
	}
	if d.LicenseText == "" {
		return "", fmt.Errorf("license details for %s contain no text", id)
	}
	return d.LicenseText, nil
}
