package parser

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// Format describes how to parse one family of file extensions.
type Format struct {
	Name       string
	Extensions []string
	Kind       manifest.Kind
	Output     manifest.Format

	// Binary formats skip text encoding repair.
	Binary bool

	Parse func(data []byte) (*manifest.Document, error)
}

var (
	registry   = make(map[string]Format)
	registryMu sync.RWMutex
)

// Register adds a format for each of its extensions.
// Panics if an extension is already registered.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, ext := range f.Extensions {
		ext = normalizeExt(ext)
		if existing, exists := registry[ext]; exists {
			panic(fmt.Sprintf("extension %s already registered by %s", ext, existing.Name))
		}
		registry[ext] = f
	}
}

// Lookup returns the format registered for an extension (with or without
// the leading dot, any case).
func Lookup(ext string) (Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[normalizeExt(ext)]
	return f, ok
}

// Extensions returns every registered extension, sorted.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func init() {
	Register(Format{
		Name:       "delimited",
		Extensions: []string{".csv", ".tsv", ".psv", ".dsv"},
		Kind:       manifest.KindDelimited,
		Output:     manifest.FormatCSV,
		Parse:      parseDelimited,
	})
	Register(Format{
		Name:       "tagged",
		Extensions: []string{".xml"},
		Kind:       manifest.KindTagged,
		Output:     manifest.FormatXML,
		Parse:      parseTagged,
	})
	Register(Format{
		Name:       "segment",
		Extensions: []string{".edi", ".x12", ".edifact"},
		Kind:       manifest.KindSegment,
		Output:     manifest.FormatEDI,
		Parse:      parseSegments,
	})
	Register(Format{
		Name:       "tabular",
		Extensions: []string{".txt", ".prn"},
		Kind:       manifest.KindTabular,
		Output:     manifest.FormatText,
		Parse:      parseTabular,
	})
	Register(Format{
		Name:       "pdf",
		Extensions: []string{".pdf"},
		Kind:       manifest.KindTabular,
		Output:     manifest.FormatPDF,
		Binary:     true,
		Parse:      parsePDF,
	})
	Register(Format{
		Name:       "array",
		Extensions: []string{".json"},
		Kind:       manifest.KindArray,
		Output:     manifest.FormatJSON,
		Parse:      parseArray,
	})
}
