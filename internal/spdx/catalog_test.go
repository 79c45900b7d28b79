package spdx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundledCatalog(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, catalog.Version())

	tests := []struct {
		id   string
		name string
	}{
		{id: "MIT", name: "MIT License"},
		{id: "Apache-2.0", name: "Apache License 2.0"},
		{id: "GPL-3.0-or-later", name: "GNU General Public License v3.0 or later"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			l, err := catalog.Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.name, l.Name)
			assert.Equal(t, "https://spdx.org/licenses/"+tt.id+".json", l.DetailsURL)
		})
	}

	licenses := catalog.Licenses()
	for i := 1; i < len(licenses); i++ {
		assert.Less(t, licenses[i-1].ID, licenses[i].ID)
	}
}

func TestBundledCatalogCoversFullList(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)

	assert.Greater(t, len(catalog.Licenses()), 600)

	tests := []struct {
		id         string
		deprecated bool
		osi        bool
	}{
		{id: "GPL-3.0", deprecated: true, osi: true},
		{id: "GPL-2.0", deprecated: true, osi: true},
		{id: "Apache-1.1", osi: true},
		{id: "BSD-2-Clause-Patent", osi: true},
		{id: "CC-BY-NC-4.0"},
		{id: "AGPL-1.0-only"},
		{id: "Beerware"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			l, err := catalog.Lookup(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.deprecated, l.Deprecated)
			assert.Equal(t, tt.osi, l.OSIApproved)
			assert.NotEmpty(t, l.Name)
			assert.Equal(t, "https://spdx.org/licenses/"+tt.id+".json", l.DetailsURL)
		})
	}
}

func TestParseDefaultsNameToID(t *testing.T) {
	catalog, err := Parse([]byte(`{"licenseListVersion":"t","licenses":[{"licenseId":"Beerware","detailsUrl":"http://x"}]}`))
	require.NoError(t, err)

	l, err := catalog.Lookup("Beerware")
	require.NoError(t, err)
	assert.Equal(t, "Beerware", l.Name)
}

func TestLookupIsCaseSensitive(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)

	for _, id := range []string{"mit", "FOO-1.0", ""} {
		_, err := catalog.Lookup(id)
		assert.ErrorIs(t, err, ErrUnknownLicense, id)
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "licenses.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"licenseListVersion":"test","licenses":[{"licenseId":"X-1.0","name":"X","detailsUrl":"http://x"}]}`), 0o600))

	catalog, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", catalog.Version())
	assert.Len(t, catalog.Licenses(), 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"licenses":[]}`))
	assert.Error(t, err)
}

func TestFetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/MIT.json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"licenseId":"MIT","licenseText":"MIT License\n\nPermission is hereby granted"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	doc := fmt.Sprintf(`{"licenseListVersion":"t","licenses":[
		{"licenseId":"MIT","name":"MIT License","detailsUrl":"%[1]s/MIT.json"},
		{"licenseId":"Gone-1.0","name":"Gone","detailsUrl":"%[1]s/Gone-1.0.json"}
	]}`, server.URL)
	catalog, err := Parse([]byte(doc))
	require.NoError(t, err)
	catalog.WithHTTPClient(server.Client())

	text, err := catalog.FetchText(context.Background(), "MIT")
	require.NoError(t, err)
	assert.Contains(t, text, "Permission is hereby granted")

	_, err = catalog.FetchText(context.Background(), "Gone-1.0")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownLicense)

	_, err = catalog.FetchText(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrUnknownLicense)
}
