package weave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Scene is a named stage within a world.
type Scene struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// SceneService is a thin pass-through to the world's scene REST endpoints.
// It carries no protocol or concurrency behavior of its own.
type SceneService struct {
	s *Session
}

// Scenes returns the scene pass-through for the session's world.
func (s *Session) Scenes() *SceneService { return &SceneService{s: s} }

func (sc *SceneService) List(ctx context.Context) ([]Scene, error) {
	var out []Scene
	err := sc.s.rest(ctx, http.MethodGet, sc.path(""), nil, &out)
	return out, err
}

func (sc *SceneService) Get(ctx context.Context, id string) (Scene, error) {
	var out Scene
	err := sc.s.rest(ctx, http.MethodGet, sc.path(id), nil, &out)
	return out, err
}

func (sc *SceneService) Create(ctx context.Context, scene Scene) (Scene, error) {
	var out Scene
	err := sc.s.rest(ctx, http.MethodPost, sc.path(""), scene, &out)
	return out, err
}

func (sc *SceneService) Update(ctx context.Context, scene Scene) (Scene, error) {
	var out Scene
	err := sc.s.rest(ctx, http.MethodPut, sc.path(scene.ID), scene, &out)
	return out, err
}

func (sc *SceneService) Delete(ctx context.Context, id string) error {
	return sc.s.rest(ctx, http.MethodDelete, sc.path(id), nil, nil)
}

func (sc *SceneService) path(id string) string {
	p := "worlds/" + url.PathEscape(sc.s.cfg.WorldID) + "/scenes"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// httpBase derives the REST base URL from the WebSocket endpoint.
func (s *Session) httpBase() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("weave: parse url: %w", err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	}
	u.Path = "/api"
	u.RawQuery = ""
	return u.String(), nil
}

// rest issues one JSON request against the service's REST surface.
func (s *Session) rest(ctx context.Context, method, path string, body, out any) error {
	base, err := s.httpBase()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("weave: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+"/"+strings.TrimPrefix(path, "/"), reader)
	if err != nil {
		return fmt.Errorf("weave: build request: %w", err)
	}
	req.Header.Set("x-api-key", s.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("weave: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("weave: %s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weave: decode response: %w", err)
	}
	return nil
}
