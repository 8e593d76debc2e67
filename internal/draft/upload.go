// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package draft

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MaxImageBytes is the largest local image accepted.
const MaxImageBytes = 10 << 20

// Image is an uploaded local image.
type Image struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// Store keeps uploaded images in memory for the lifetime of the process.
// The upload id is the content hash, so attaching the same file twice is
// free. Safe for concurrent use; uploads run off the UI loop.
type Store struct {
	mu     sync.RWMutex
	images map[string]Image
}

// NewStore creates an empty image store.
func NewStore() *Store {
	return &Store{images: make(map[string]Image)}
}

// Upload reads the image at path and returns its upload id.
func (s *Store) Upload(ctx context.Context, path string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("attach %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("attach %s: is a directory", filepath.Base(path))
	}
	if info.Size() > MaxImageBytes {
		return Image{}, fmt.Errorf("attach %s: %d bytes exceeds the %d byte limit", filepath.Base(path), info.Size(), MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("attach %s: %w", filepath.Base(path), err)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, fmt.Errorf("attach %s: not an image (%s)", filepath.Base(path), contentType)
	}

	sum := sha256.Sum256(data)
	img := Image{
		ID:          hex.EncodeToString(sum[:16]),
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}
	s.mu.Lock()
	s.images[img.ID] = img
	s.mu.Unlock()
	return img, nil
}

// Get returns the image with the given upload id.
func (s *Store) Get(id string) (Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	return img, ok
}

// ParseAttachment turns a /attach argument into a draft file. http(s) URLs
// become remote files; anything else is a local path waiting for upload.
func ParseAttachment(arg string) (File, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return File{}, fmt.Errorf("nothing to attach")
	}
	if u, err := url.Parse(arg); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return File{Name: filepath.Base(u.Path), URL: arg, TransferMethod: TransferRemote}, nil
	}

	path := arg
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:           filepath.Base(abs),
		URL:            "file://" + filepath.ToSlash(abs),
		TransferMethod: TransferLocal,
	}, nil
}

// LocalPath returns the filesystem path of a local file URL.
func LocalPath(fileURL string) string {
	return filepath.FromSlash(strings.TrimPrefix(fileURL, "file://"))
}
