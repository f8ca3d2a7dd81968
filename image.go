package drawsheet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DrawingImage is a resolved drawing page ready for transmission.
type DrawingImage struct {
	Data     []byte
	MIMEType string
}

// ImageRef points at one drawing page. Exactly one of Data, Path or URL
// should be set; resolution precedence is Data, then Path, then URL.
// MIMEType is optional and sniffed from content when empty.
type ImageRef struct {
	Data     []byte
	Path     string
	URL      string
	MIMEType string
}

var imageHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Resolve fetches the referenced page and returns its bytes with a concrete
// MIME type. Fetch failures map to ErrExternalService so the batch treats
// them like any other per-item transport fault.
func (r ImageRef) Resolve(ctx context.Context) (DrawingImage, error) {
	switch {
	case len(r.Data) > 0:
		return DrawingImage{Data: r.Data, MIMEType: r.mimeOf(r.Data)}, nil

	case r.Path != "":
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return DrawingImage{}, fmt.Errorf("read drawing %s: %w", r.Path, err)
		}
		if len(data) == 0 {
			return DrawingImage{}, fmt.Errorf("drawing %s: %w", r.Path, ErrEmptyImage)
		}
		return DrawingImage{Data: data, MIMEType: r.mimeOf(data)}, nil

	case r.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
		if err != nil {
			return DrawingImage{}, fmt.Errorf("build drawing request: %w", err)
		}
		resp, err := imageHTTPClient.Do(req)
		if err != nil {
			return DrawingImage{}, fmt.Errorf("fetch drawing %s: %w: %v", r.URL, ErrExternalService, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return DrawingImage{}, fmt.Errorf("fetch drawing %s: status %d: %w", r.URL, resp.StatusCode, ErrExternalService)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return DrawingImage{}, fmt.Errorf("read drawing body: %w: %v", ErrExternalService, err)
		}
		if len(data) == 0 {
			return DrawingImage{}, fmt.Errorf("fetch drawing %s: %w", r.URL, ErrEmptyImage)
		}
		return DrawingImage{Data: data, MIMEType: r.mimeOf(data)}, nil
	}
	return DrawingImage{}, ErrEmptyImage
}

// mimeOf prefers the caller-supplied MIME type, then content sniffing.
func (r ImageRef) mimeOf(data []byte) string {
	if r.MIMEType != "" {
		return r.MIMEType
	}
	return mimetype.Detect(data).String()
}
