package compliance

import (
	"context"

	"github.com/danielolaszy/codefair/internal/logging"
)

// ContentReader is the part of the GitHub client the inspector needs.
type ContentReader interface {
	GetLicense(ctx context.Context, repository string) (string, error)
	GetFileContent(ctx context.Context, repository, path string) (string, error)
}

// Presence records which required files a repository has.
type Presence map[string]bool

// Has reports whether the file for k is present.
func (p Presence) Has(k Kind) bool {
	return p[k.ID]
}

// Inspector checks a repository for the required files.
type Inspector struct {
	client ContentReader
}

// NewInspector creates an inspector.
func NewInspector(client ContentReader) *Inspector {
	return &Inspector{client: client}
}

// HasLicense reports whether GitHub detects a license. Any failure counts as
// absent.
func (i *Inspector) HasLicense(ctx context.Context, repository string) bool {
	spdx, err := i.client.GetLicense(ctx, repository)
	if err != nil {
		logging.DebugContext(ctx, "no license detected", "error", err)
		return false
	}
	logging.DebugContext(ctx, "license detected", "spdx_id", spdx)
	return true
}

// HasCitation reports whether CITATION.cff exists at the root. Any failure
// counts as absent.
func (i *Inspector) HasCitation(ctx context.Context, repository string) bool {
	if _, err := i.client.GetFileContent(ctx, repository, Citation.Path); err != nil {
		logging.DebugContext(ctx, "no citation file detected", "error", err)
		return false
	}
	return true
}

// Inspect checks every kind.
func (i *Inspector) Inspect(ctx context.Context, repository string) Presence {
	p := Presence{
		License.ID:  i.HasLicense(ctx, repository),
		Citation.ID: i.HasCitation(ctx, repository),
	}
	logging.InfoContext(ctx, "inspected repository",
		"has_license", p.Has(License),
		"has_citation", p.Has(Citation))
	return p
}

// ApplyPush marks kinds present when a pushed commit added their file. The
// API may not reflect the push yet, so the commit lists win over the
// inspection result.
func ApplyPush(p Presence, added [][]string) Presence {
	out := make(Presence, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, files := range added {
		for _, path := range files {
			if k, ok := ByPath(path); ok {
				out[k.ID] = true
			}
		}
	}
	return out
}
