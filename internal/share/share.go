// Package share mints public share tokens for finished manifests and resolves
// them into a playback-only view.
package share

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"panelcast/internal/artifacts"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
	"panelcast/internal/store"
)

// Resolver maps tokens to cached manifests.
type Resolver struct {
	store     *store.Store
	workspace artifacts.Workspace
}

// NewResolver builds a resolver over the manifest store. Artifact lookups are
// rooted at workspace.
func NewResolver(st *store.Store, workspace artifacts.Workspace) *Resolver {
	return &Resolver{store: st, workspace: workspace}
}

// Mint returns the token for fp, creating it on first use. Minting is
// serialized with every other writer of the fingerprint.
func (r *Resolver) Mint(ctx context.Context, fp string) (string, error) {
	unlock := r.store.Locks().Lock(fp)
	defer unlock()
	return r.store.MintToken(ctx, fp)
}

// Resolve returns the playback view behind token. Unknown tokens and
// fingerprints without a finished manifest are both reported as not found.
func (r *Resolver) Resolve(ctx context.Context, token string) (*PublicManifest, error) {
	entry, err := r.entry(ctx, token)
	if err != nil {
		return nil, err
	}
	return Public(entry.Manifest), nil
}

// AssetPath maps an artifact reference from a resolved manifest to the file
// on disk. References outside the owning job's directory are rejected.
func (r *Resolver) AssetPath(ctx context.Context, token, rel string) (string, error) {
	entry, err := r.entry(ctx, token)
	if err != nil {
		return "", err
	}
	if !referenced(entry.Manifest, rel) {
		return "", fmt.Errorf("%w: asset", services.ErrNotFound)
	}
	path, err := r.workspace.Abs(entry.JobID, rel)
	if err != nil {
		return "", fmt.Errorf("%w: asset", services.ErrNotFound)
	}
	return path, nil
}

func (r *Resolver) entry(ctx context.Context, token string) (*store.CacheEntry, error) {
	fp, err := r.store.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	entry, err := r.store.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	if entry.Stage != stage.Done || entry.Manifest == nil {
		return nil, fmt.Errorf("%w: token", services.ErrNotFound)
	}
	return entry, nil
}

// PlaybackURL joins the public base URL and token. An empty base yields a
// root-relative path.
func PlaybackURL(base, token string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return base + "/play/" + url.PathEscape(token)
}

func referenced(doc *manifest.Comic, rel string) bool {
	if doc == nil || rel == "" {
		return false
	}
	for _, page := range doc.Pages {
		if page.ImagePath == rel {
			return true
		}
		for _, panel := range page.Panels {
			if panel.ImagePath == rel || panel.NormalizedImagePath == rel || panel.SFXAudioPath == rel {
				return true
			}
			for _, bubble := range panel.Bubbles {
				if bubble.AudioPath == rel {
					return true
				}
			}
		}
	}
	return false
}
