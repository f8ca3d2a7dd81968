package drawsheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal valid PNG header, enough for MIME sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

func TestImageRefResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("raw bytes with sniffed mime", func(t *testing.T) {
		img, err := ImageRef{Data: pngBytes}.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, img.Data)
		assert.Equal(t, "image/png", img.MIMEType)
	})

	t.Run("explicit mime wins", func(t *testing.T) {
		img, err := ImageRef{Data: pngBytes, MIMEType: "application/pdf"}.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", img.MIMEType)
	})

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "page.png")
		require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

		img, err := ImageRef{Path: path}.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, img.Data)
		assert.Equal(t, "image/png", img.MIMEType)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ImageRef{Path: filepath.Join(t.TempDir(), "absent.png")}.Resolve(ctx)
		assert.Error(t, err)
	})

	t.Run("url fetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(pngBytes)
		}))
		defer srv.Close()

		img, err := ImageRef{URL: srv.URL}.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, img.Data)
		assert.Equal(t, "image/png", img.MIMEType)
	})

	t.Run("non-2xx maps to external service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := ImageRef{URL: srv.URL}.Resolve(ctx)
		assert.ErrorIs(t, err, ErrExternalService)
	})

	t.Run("unreachable host maps to external service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := ImageRef{URL: url}.Resolve(ctx)
		assert.ErrorIs(t, err, ErrExternalService)
	})

	t.Run("empty ref", func(t *testing.T) {
		_, err := ImageRef{}.Resolve(ctx)
		assert.ErrorIs(t, err, ErrEmptyImage)
	})
}
