// Package assets stores the image and sound files that description markup
// refers to.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/apperr"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/storage"
)

// MaxSize is the largest accepted asset.
const MaxSize = 10 << 20

var (
	extKinds = map[string]markup.Kind{
		".png": markup.KindImage, ".jpg": markup.KindImage, ".jpeg": markup.KindImage,
		".gif": markup.KindImage, ".webp": markup.KindImage, ".svg": markup.KindImage,
		".mp3": markup.KindSound, ".wav": markup.KindSound, ".ogg": markup.KindSound,
		".flac": markup.KindSound,
	}

	mimeExts = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/svg+xml":   ".svg",
		"audio/mpeg":      ".mp3",
		"audio/wave":      ".wav",
		"audio/wav":       ".wav",
		"audio/x-wav":     ".wav",
		"audio/ogg":       ".ogg",
		"application/ogg": ".ogg",
		"audio/flac":      ".flac",
	}

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Asset describes a stored file and the markup tag that embeds it.
type Asset struct {
	Name string      `json:"name"`
	Kind markup.Kind `json:"kind"`
	Size int64       `json:"size"`
	URL  string      `json:"url"`
	Tag  string      `json:"tag"`
}

// Library is a flat directory of assets.
type Library struct {
	store storage.Provider
}

// New returns a library over store.
func New(store storage.Provider) *Library {
	return &Library{store: store}
}

// Root returns the directory assets are stored in.
func (l *Library) Root() string { return l.store.Root() }

// ExtForMIME returns the file extension for a content type, or "".
func ExtForMIME(contentType string) string {
	return mimeExts[strings.TrimSpace(strings.Split(contentType, ";")[0])]
}

// Sanitize reduces name to a flat, portable file name.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = uuid.NewString()
	}
	return name
}

// KindOf classifies a file name by extension.
func KindOf(name string) (markup.Kind, bool) {
	k, ok := extKinds[strings.ToLower(filepath.Ext(name))]
	return k, ok
}

// Save validates and stores data under the sanitized name. label becomes the
// tag text; it defaults to the name without extension.
func (l *Library) Save(name, label string, data []byte) (Asset, error) {
	name = Sanitize(name)
	kind, ok := KindOf(name)
	if !ok {
		return Asset{}, fmt.Errorf("assets: unsupported file type %q: %w", filepath.Ext(name), apperr.ErrInvalid)
	}
	if len(data) > MaxSize {
		return Asset{}, fmt.Errorf("assets: %d bytes exceeds %d: %w", len(data), MaxSize, apperr.ErrInvalid)
	}
	if err := checkContent(data, name, kind); err != nil {
		return Asset{}, fmt.Errorf("assets: %w: %w", err, apperr.ErrInvalid)
	}
	if _, err := l.store.Read(name); err == nil {
		return Asset{}, fmt.Errorf("assets: %s: %w", name, apperr.ErrAlreadyExists)
	}
	if err := l.store.Write(name, data); err != nil {
		return Asset{}, fmt.Errorf("assets: save %s: %w: %w", name, apperr.ErrIO, err)
	}
	return describe(name, label, kind, int64(len(data))), nil
}

// Read returns the content of the asset called name.
func (l *Library) Read(name string) ([]byte, error) {
	if name != Sanitize(name) {
		return nil, fmt.Errorf("assets: invalid name %q: %w", name, apperr.ErrInvalid)
	}
	data, err := l.store.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("assets: %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("assets: read %s: %w: %w", name, apperr.ErrIO, err)
	}
	return data, nil
}

// List returns every stored asset sorted by name.
func (l *Library) List() ([]Asset, error) {
	metas, err := l.store.List("")
	if err != nil {
		return nil, fmt.Errorf("assets: %w: %w", apperr.ErrIO, err)
	}
	out := make([]Asset, 0, len(metas))
	for _, m := range metas {
		if filepath.Dir(m.Path) != "." {
			continue
		}
		kind, ok := KindOf(m.Path)
		if !ok {
			continue
		}
		out = append(out, describe(m.Path, "", kind, m.Size))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func describe(name, label string, kind markup.Kind, size int64) Asset {
	if label == "" {
		label = strings.TrimSuffix(name, filepath.Ext(name))
	}
	label = strings.ReplaceAll(label, `"`, "'")
	seg := markup.Segment{Kind: kind, Text: label, Target: name}
	return Asset{
		Name: name,
		Kind: kind,
		Size: size,
		URL:  "/api/assets/" + name,
		Tag:  seg.Tag(),
	}
}

// checkContent rejects images whose bytes do not match the extension. Sound
// formats are only sniffed when the content type is recognizable.
func checkContent(data []byte, name string, kind markup.Kind) error {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext == ".svg" {
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content is not an SVG image")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	got := ExtForMIME(detected)
	if kind == markup.KindSound && got == "" {
		return nil
	}
	if got != ext {
		return fmt.Errorf("content does not match %s (detected %s)", ext, detected)
	}
	return nil
}
