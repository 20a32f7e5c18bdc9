package weave

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"
)

// ImageRecord describes one uploaded or generated image in a world.
type ImageRecord struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	URL       string         `json:"url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
}

// ImageService is a thin pass-through to the world's image REST endpoints.
type ImageService struct {
	s *Session
}

// Images returns the image pass-through for the session's world.
func (s *Session) Images() *ImageService { return &ImageService{s: s} }

// Upload stores image bytes under name and returns the created record.
func (im *ImageService) Upload(ctx context.Context, name string, data []byte) (ImageRecord, error) {
	payload := map[string]any{
		"name": name,
		"data": base64.StdEncoding.EncodeToString(data),
	}
	var out ImageRecord
	err := im.s.rest(ctx, http.MethodPost, im.path(""), payload, &out)
	return out, err
}

// CreateRecord registers an externally hosted image (e.g. a generation
// result) without uploading bytes.
func (im *ImageService) CreateRecord(ctx context.Context, record ImageRecord) (ImageRecord, error) {
	var out ImageRecord
	err := im.s.rest(ctx, http.MethodPost, im.path("records"), record, &out)
	return out, err
}

func (im *ImageService) List(ctx context.Context) ([]ImageRecord, error) {
	var out []ImageRecord
	err := im.s.rest(ctx, http.MethodGet, im.path(""), nil, &out)
	return out, err
}

func (im *ImageService) path(suffix string) string {
	p := "worlds/" + url.PathEscape(im.s.cfg.WorldID) + "/images"
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}
