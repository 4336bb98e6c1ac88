package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRankOf(t *testing.T) {
	assert.Less(t, rankOf("svg"), rankOf("webp"))
	assert.Less(t, rankOf("webp"), rankOf("png"))
	assert.Less(t, rankOf("png"), rankOf("jpg"))

	// Unknown extensions rank worst, so they can never displace a stored file.
	assert.Greater(t, rankOf(""), rankOf("jpg"))
	assert.Greater(t, rankOf("php"), rankOf("jpg"))
}

func iconServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIconFetchUpgradesFromExtensionlessURL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsapp.png"), []byte("old-png"), 0o644))

	srv := iconServer(t, "image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`))
	r := NewIconReconciler(dir, zap.NewNop())

	require.NoError(t, r.fetch(context.Background(), dir, "whatsapp", srv.URL+"/icon"))

	_, err := os.Stat(filepath.Join(dir, "whatsapp.svg"))
	assert.NoError(t, err, "svg from the content type should replace the png")
	_, err = os.Stat(filepath.Join(dir, "whatsapp.png"))
	assert.True(t, os.IsNotExist(err), "only one file per slug may remain")
}

func TestIconFetchNeverDowngradesStoredFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsapp.svg"), []byte("<svg/>"), 0o644))

	srv := iconServer(t, "image/png", []byte("png-bytes"))
	r := NewIconReconciler(dir, zap.NewNop())

	require.NoError(t, r.fetch(context.Background(), dir, "whatsapp", srv.URL+"/icon"))

	_, err := os.Stat(filepath.Join(dir, "whatsapp.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "whatsapp.svg"))
	assert.NoError(t, err)
}

func TestIconFetchRejectsHTML(t *testing.T) {
	dir := t.TempDir()
	srv := iconServer(t, "text/html", []byte("<html><body>404</body></html>"))
	r := NewIconReconciler(dir, zap.NewNop())

	err := r.fetch(context.Background(), dir, "whatsapp", srv.URL+"/icon.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML")
}
