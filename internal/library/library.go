// Package library turns book manifests and directories of audio files into
// core.Book values with contiguous track offsets and a chapter table.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/quire/internal/audio"
	"github.com/tessro/quire/internal/core"
	qerr "github.com/tessro/quire/internal/errors"
	"github.com/tessro/quire/internal/position"
)

// ManifestName is the file looked for when a directory is opened.
const ManifestName = "book.toml"

// measureLimit bounds concurrent decoder opens while measuring durations.
const measureLimit = 4

// Manifest is the on-disk description of a book.
type Manifest struct {
	ID       string         `toml:"id"`
	Title    string         `toml:"title"`
	Author   string         `toml:"author"`
	Tracks   []TrackEntry   `toml:"tracks"`
	Chapters []ChapterEntry `toml:"chapters"`
}

// TrackEntry is one audio file. Duration is measured when zero.
type TrackEntry struct {
	Path     string  `toml:"path"`
	Duration float64 `toml:"duration"`
	Sequence int     `toml:"sequence"`
}

// ChapterEntry is one chapter. A zero End runs to the next chapter.
type ChapterEntry struct {
	Title string  `toml:"title"`
	Start float64 `toml:"start"`
	End   float64 `toml:"end"`
}

// Measurer returns a file's duration in seconds.
type Measurer func(path string) (float64, error)

// Loader builds books.
type Loader struct {
	measure Measurer
}

// Option configures a Loader.
type Option func(*Loader)

// WithMeasurer replaces audio.MeasureDuration.
func WithMeasurer(p Measurer) Option {
	return func(l *Loader) {
		if p != nil {
			l.measure = p
		}
	}
}

// NewLoader returns a Loader that measures with audio.MeasureDuration.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{measure: audio.MeasureDuration}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open loads path, which may be a manifest file or a directory. A
// directory with a book.toml is loaded from it; otherwise its audio files
// become the tracks in name order.
func (l *Loader) Open(ctx context.Context, path string) (*core.Book, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return l.LoadManifest(ctx, path)
	}
	manifest := filepath.Join(path, ManifestName)
	if _, err := os.Stat(manifest); err == nil {
		return l.LoadManifest(ctx, manifest)
	}
	return l.FromDir(ctx, path)
}

// LoadManifest reads a TOML manifest. Relative track paths resolve against
// the manifest's directory.
func (l *Loader) LoadManifest(ctx context.Context, path string) (*core.Book, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w: %w", path, qerr.ErrInvalidManifest, err)
	}
	base := filepath.Dir(path)
	for i := range m.Tracks {
		if m.Tracks[i].Path != "" && !filepath.IsAbs(m.Tracks[i].Path) {
			m.Tracks[i].Path = filepath.Join(base, m.Tracks[i].Path)
		}
	}
	if m.Title == "" {
		m.Title = strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	}
	book, err := l.Build(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return book, nil
}

// FromDir builds a book from the supported audio files directly in dir.
func (l *Loader) FromDir(ctx context.Context, dir string) (*core.Book, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	m := Manifest{Title: filepath.Base(dir)}
	for _, e := range entries {
		if e.IsDir() || !audio.Supported(e.Name()) {
			continue
		}
		m.Tracks = append(m.Tracks, TrackEntry{Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(m.Tracks, func(i, j int) bool { return m.Tracks[i].Path < m.Tracks[j].Path })
	return l.Build(ctx, m)
}

// Build validates m, measures missing durations and lays the tracks out on
// the global timeline.
func (l *Loader) Build(ctx context.Context, m Manifest) (*core.Book, error) {
	if len(m.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks", qerr.ErrInvalidManifest)
	}
	for i, t := range m.Tracks {
		if t.Path == "" {
			return nil, fmt.Errorf("%w: track %d has no path", qerr.ErrInvalidManifest, i)
		}
		if t.Duration < 0 {
			return nil, fmt.Errorf("%w: track %d has negative duration", qerr.ErrInvalidManifest, i)
		}
	}

	entries := slices.Clone(m.Tracks)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })

	if err := l.measureMissing(ctx, entries); err != nil {
		return nil, err
	}

	tracks := make([]core.Track, len(entries))
	start := 0.0
	for i, e := range entries {
		tracks[i] = core.Track{Index: i, Source: e.Path, Start: start, Duration: e.Duration}
		start += e.Duration
	}
	if err := position.ValidateTracks(tracks); err != nil {
		return nil, fmt.Errorf("%w: %w", qerr.ErrInvalidManifest, err)
	}

	chapters, err := buildChapters(m.Chapters, tracks)
	if err != nil {
		return nil, err
	}

	id := m.ID
	if id == "" {
		if id, err = BookID(m.Title, tracks); err != nil {
			return nil, err
		}
	}

	return &core.Book{
		ID:       id,
		Title:    m.Title,
		Author:   m.Author,
		Tracks:   tracks,
		Chapters: chapters,
	}, nil
}

func (l *Loader) measureMissing(ctx context.Context, entries []TrackEntry) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(measureLimit)
	for i := range entries {
		if entries[i].Duration > 0 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := l.measure(entries[i].Path)
			if err != nil {
				return fmt.Errorf("probing %s: %w", entries[i].Path, err)
			}
			entries[i].Duration = d
			return nil
		})
	}
	return g.Wait()
}

// buildChapters checks listed chapters against the timeline, or makes one
// chapter per track when none are listed.
func buildChapters(listed []ChapterEntry, tracks []core.Track) ([]core.Chapter, error) {
	total := position.TotalDuration(tracks)

	if len(listed) == 0 {
		chapters := make([]core.Chapter, len(tracks))
		for i, t := range tracks {
			chapters[i] = core.Chapter{
				Index: i,
				Title: trackTitle(t),
				Start: t.Start,
				End:   t.End(),
			}
		}
		return chapters, nil
	}

	chapters := make([]core.Chapter, len(listed))
	for i, c := range listed {
		end := c.End
		if end == 0 {
			end = total
			if i+1 < len(listed) {
				end = listed[i+1].Start
			}
		}
		if c.Start < 0 || c.Start >= total || end <= c.Start || end > total+0.01 {
			return nil, fmt.Errorf("%w: chapter %d (%q) spans %.3f-%.3f outside 0-%.3f",
				qerr.ErrInvalidManifest, i, c.Title, c.Start, end, total)
		}
		if i > 0 && c.Start < chapters[i-1].End {
			return nil, fmt.Errorf("%w: chapter %d (%q) overlaps the previous chapter",
				qerr.ErrInvalidManifest, i, c.Title)
		}
		title := c.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		chapters[i] = core.Chapter{Index: i, Title: title, Start: c.Start, End: end}
	}
	return chapters, nil
}

func trackTitle(t core.Track) string {
	name := filepath.Base(t.Source)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." {
		return fmt.Sprintf("Track %d", t.Index+1)
	}
	return name
}

// BookID derives a stable id from the title and track files.
func BookID(title string, tracks []core.Track) (string, error) {
	key := struct {
		Title string
		Files []string
	}{Title: title}
	for _, t := range tracks {
		key.Files = append(key.Files, filepath.Base(t.Source))
	}
	h, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hashing book id: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
