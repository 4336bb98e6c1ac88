package provider

import (
	"fmt"
	"os"
	"path/filepath"
)

// iconExtensions in preference order. When several local assets exist for one
// slug, the best format wins.
var iconExtensions = []string{"svg", "webp", "png", "jpg"}

// IconResolver turns a canonical slug plus an optional vendor-supplied URL into
// the public icon URL. Locally mirrored assets win over vendor URLs; a missing
// icon resolves to a deterministic placeholder so the frontend never renders a
// broken image.
type IconResolver struct {
	dir        string // local asset directory, layout <dir>/<kind>/<slug>.<ext>
	publicBase string // URL prefix the asset directory is served under
}

// NewIconResolver builds a resolver over the icon asset directory.
func NewIconResolver(dir, publicBase string) *IconResolver {
	return &IconResolver{dir: dir, publicBase: publicBase}
}

// ServiceIcon resolves the icon URL for a service slug.
func (r *IconResolver) ServiceIcon(slug, vendorURL string) string {
	return r.resolve("services", slug, vendorURL)
}

// CountryFlag resolves the flag URL for a country code.
func (r *IconResolver) CountryFlag(code, vendorURL string) string {
	return r.resolve("flags", code, vendorURL)
}

func (r *IconResolver) resolve(kind, slug, vendorURL string) string {
	if slug == "" {
		return vendorURL
	}
	if r.dir != "" {
		for _, ext := range iconExtensions {
			name := slug + "." + ext
			if _, err := os.Stat(filepath.Join(r.dir, kind, name)); err == nil {
				return fmt.Sprintf("%s/%s/%s", r.publicBase, kind, name)
			}
		}
	}
	if vendorURL != "" {
		return vendorURL
	}
	return fmt.Sprintf("%s/placeholders/%s.svg", r.publicBase, kind)
}
