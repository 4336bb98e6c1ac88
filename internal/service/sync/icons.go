package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
)

// iconRank orders extensions best-first. Exactly one file may exist per slug;
// a better format replaces a worse one, a worse one is discarded.
var iconRank = map[string]int{"svg": 0, "webp": 1, "png": 2, "jpg": 3}

// rankOf ranks an extension, with unknown extensions worst so they never beat
// a stored format.
func rankOf(ext string) int {
	if r, ok := iconRank[ext]; ok {
		return r
	}
	return len(iconRank)
}

// knownBadIconHashes are content hashes of vendor "no icon" placeholders and
// error pages that some vendors serve with image headers.
var knownBadIconHashes = map[string]struct{}{
	"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855": {}, // empty file
}

// IconReconciler mirrors vendor service icons into the local asset directory.
type IconReconciler struct {
	dir    string
	client *http.Client
	logger *zap.Logger
}

// NewIconReconciler builds the reconciler over the icon directory.
func NewIconReconciler(dir string, logger *zap.Logger) *IconReconciler {
	return &IconReconciler{
		dir:    dir,
		client: &http.Client{Timeout: 20 * time.Second},
		logger: logger,
	}
}

// Reconcile downloads any service icon that has no local asset yet. Failures
// are logged per icon and never abort the pass.
func (r *IconReconciler) Reconcile(ctx context.Context, services []catalog.ProviderService) {
	if r.dir == "" {
		return
	}
	targetDir := filepath.Join(r.dir, "services")
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		r.logger.Error("icon directory unavailable", zap.String("dir", targetDir), zap.Error(err))
		return
	}

	done := make(map[string]struct{}, len(services))
	for _, svc := range services {
		if ctx.Err() != nil {
			return
		}
		slug := svc.CanonicalCode
		if slug == "" || svc.IconURL == "" || strings.HasPrefix(svc.IconURL, "/") {
			continue
		}
		if _, seen := done[slug]; seen {
			continue
		}
		done[slug] = struct{}{}

		if err := r.fetch(ctx, targetDir, slug, svc.IconURL); err != nil {
			r.logger.Warn("icon fetch failed",
				zap.String("slug", slug), zap.String("url", svc.IconURL), zap.Error(err))
		}
	}
}

func (r *IconReconciler) fetch(ctx context.Context, dir, slug, iconURL string) error {
	ext := extensionOf(iconURL)
	if existing := localIcon(dir, slug); existing != "" {
		// Keep the better format; replace only with a strictly better one. A
		// URL without a recognizable extension still gets downloaded: its real
		// format comes from the response content type.
		if _, known := iconRank[ext]; known && rankOf(ext) >= rankOf(extensionOf(existing)) {
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}
	if looksLikeHTML(resp.Header.Get("Content-Type"), body) {
		return fmt.Errorf("response is HTML, not an image")
	}
	sum := sha256.Sum256(body)
	if _, bad := knownBadIconHashes[hex.EncodeToString(sum[:])]; bad {
		return fmt.Errorf("known-bad icon content")
	}

	if _, ok := iconRank[ext]; !ok {
		ext = extensionFromContentType(resp.Header.Get("Content-Type"))
	}
	if _, ok := iconRank[ext]; !ok {
		return fmt.Errorf("unsupported icon format %q", ext)
	}
	if existing := localIcon(dir, slug); existing != "" &&
		ext != extensionOf(existing) && rankOf(ext) >= rankOf(extensionOf(existing)) {
		return nil
	}

	path := filepath.Join(dir, slug+"."+ext)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	// One file per slug: drop every other extension.
	for other := range iconRank {
		if other == ext {
			continue
		}
		os.Remove(filepath.Join(dir, slug+"."+other))
	}
	r.logger.Debug("icon stored", zap.String("slug", slug), zap.String("ext", ext))
	return nil
}

// localIcon returns the path of the existing asset for slug, best format first.
func localIcon(dir, slug string) string {
	for _, ext := range []string{"svg", "webp", "png", "jpg"} {
		path := filepath.Join(dir, slug+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func extensionOf(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if idx := strings.IndexAny(ext, "?#"); idx >= 0 {
		ext = ext[:idx]
	}
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext
}

func extensionFromContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "svg"):
		return "svg"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "jpg"
	default:
		return ""
	}
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "text/html") {
		return true
	}
	probe := strings.ToLower(string(body[:min(len(body), 256)]))
	return strings.Contains(probe, "<!doctype html") || strings.Contains(probe, "<html")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
