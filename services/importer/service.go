// Package importer bulk-loads an IMDb-style TSV dataset into the media
// catalog. It owns the catalog write path; the recommender only reads.
package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"github.com/spf13/afero"

	"cinerank/models"
)

// Dataset file names, matching the IMDb bulk export layout. A trailing .gz
// variant of each name is picked up transparently.
const (
	basicsFile     = "title.basics.tsv"
	ratingsFile    = "title.ratings.tsv"
	namesFile      = "name.basics.tsv"
	principalsFile = "title.principals.tsv"
)

const nullField = `\N`

// CatalogWriter is the write surface of the catalog store the importer fills.
type CatalogWriter interface {
	EnsureGenre(ctx context.Context, name string) (int64, error)
	UpsertMedia(ctx context.Context, m *models.Media) (int64, error)
	SetGenres(ctx context.Context, mediaID int64, genreIDs []int64) error
	SetRating(ctx context.Context, mediaID int64, rating *float64, votes int64) error
	UpsertPerson(ctx context.Context, p *models.Person) (int64, error)
	AddCredit(ctx context.Context, mediaID, personID int64, role string) error
}

// Stats counts what one import run wrote and skipped.
type Stats struct {
	Media   int
	People  int
	Ratings int
	Credits int
	Skipped int
}

// Service imports TSV dataset files from a filesystem into the catalog.
type Service struct {
	fs      afero.Fs
	catalog CatalogWriter
}

// NewService returns an importer reading from fs and writing through catalog.
func NewService(fs afero.Fs, catalog CatalogWriter) *Service {
	return &Service{fs: fs, catalog: catalog}
}

// Run imports every dataset file present in dir, in dependency order.
// Missing files are skipped so partial datasets import what they can.
func (s *Service) Run(ctx context.Context, dir string) (Stats, error) {
	var stats Stats

	steps := []struct {
		file string
		fn   func(context.Context, io.Reader, *Stats) error
	}{
		{basicsFile, s.importBasics},
		{namesFile, s.importNames},
		{ratingsFile, s.importRatings},
		{principalsFile, s.importPrincipals},
	}

	for _, step := range steps {
		r, closeFn, err := s.open(dir, step.file)
		if err != nil {
			slog.Warn("importer.file_skipped", "file", step.file, "error", err)
			continue
		}
		err = step.fn(ctx, r, &stats)
		closeFn()
		if err != nil {
			return stats, fmt.Errorf("import %s: %w", step.file, err)
		}
	}

	slog.Info("importer.done",
		"media", stats.Media, "people", stats.People,
		"ratings", stats.Ratings, "credits", stats.Credits,
		"skipped", stats.Skipped)
	return stats, nil
}

// open returns a reader for the plain or gzipped variant of name.
func (s *Service) open(dir, name string) (io.Reader, func(), error) {
	path := filepath.Join(dir, name)
	if f, err := s.fs.Open(path); err == nil {
		return f, func() { f.Close() }, nil
	}

	f, err := s.fs.Open(path + ".gz")
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open %s.gz: %w", name, err)
	}
	return gz, func() { gz.Close(); f.Close() }, nil
}

// importBasics reads title rows: keeps movies, TV movies and series, maps
// the IMDb type to ours, and attaches genre links from the genres column.
func (s *Service) importBasics(ctx context.Context, r io.Reader, stats *Stats) error {
	genreIDs := make(map[string]int64)

	return eachRow(r, 9, func(fields []string) error {
		id, ok := titleID(fields[0])
		if !ok {
			stats.Skipped++
			return nil
		}

		mediaType := ""
		switch fields[1] {
		case "movie", "tvMovie":
			mediaType = models.MediaTypeMovie
		case "tvSeries":
			mediaType = models.MediaTypeTV
		default:
			return nil
		}

		title := field(fields[2])
		if title == "" {
			stats.Skipped++
			return nil
		}

		m := models.Media{
			ID:              id,
			Title:           title,
			NormalizedTitle: normalizeTitle(title),
			Type:            mediaType,
			Year:            intField(fields[5]),
		}
		if _, err := s.catalog.UpsertMedia(ctx, &m); err != nil {
			return err
		}
		stats.Media++

		var linked []int64
		for _, name := range strings.Split(field(fields[8]), ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			gid, ok := genreIDs[name]
			if !ok {
				var err error
				gid, err = s.catalog.EnsureGenre(ctx, name)
				if err != nil {
					return err
				}
				genreIDs[name] = gid
			}
			linked = append(linked, gid)
		}
		if len(linked) > 0 {
			if err := s.catalog.SetGenres(ctx, id, linked); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) importNames(ctx context.Context, r io.Reader, stats *Stats) error {
	return eachRow(r, 2, func(fields []string) error {
		id, ok := nameID(fields[0])
		if !ok {
			stats.Skipped++
			return nil
		}
		name := field(fields[1])
		if name == "" {
			stats.Skipped++
			return nil
		}
		p := models.Person{ID: id, Name: name}
		if _, err := s.catalog.UpsertPerson(ctx, &p); err != nil {
			return err
		}
		stats.People++
		return nil
	})
}

func (s *Service) importRatings(ctx context.Context, r io.Reader, stats *Stats) error {
	return eachRow(r, 3, func(fields []string) error {
		id, ok := titleID(fields[0])
		if !ok {
			stats.Skipped++
			return nil
		}
		rating, err := strconv.ParseFloat(field(fields[1]), 64)
		if err != nil {
			stats.Skipped++
			return nil
		}
		votes, _ := strconv.ParseInt(field(fields[2]), 10, 64)
		if err := s.catalog.SetRating(ctx, id, &rating, votes); err != nil {
			return err
		}
		stats.Ratings++
		return nil
	})
}

// importPrincipals keeps actor, actress, director and writer credits,
// folding actress into actor the way the catalog stores roles.
func (s *Service) importPrincipals(ctx context.Context, r io.Reader, stats *Stats) error {
	return eachRow(r, 4, func(fields []string) error {
		role := ""
		switch fields[3] {
		case "actor", "actress":
			role = models.RoleActor
		case "director":
			role = models.RoleDirector
		case "writer":
			role = models.RoleWriter
		default:
			return nil
		}

		mediaID, okM := titleID(fields[0])
		personID, okP := nameID(fields[2])
		if !okM || !okP {
			stats.Skipped++
			return nil
		}

		if err := s.catalog.AddCredit(ctx, mediaID, personID, role); err != nil {
			return err
		}
		stats.Credits++
		return nil
	})
}

// eachRow walks a TSV stream, skipping the header line and any row with
// fewer than minFields columns. A bad row is a data-quality issue, not a
// reason to abort the import.
func eachRow(r io.Reader, minFields int, fn func(fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < minFields {
			continue
		}
		if err := fn(fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func field(s string) string {
	if s == nullField {
		return ""
	}
	return s
}

func intField(s string) int {
	n, _ := strconv.Atoi(field(s))
	return n
}

// titleID extracts the numeric part of an IMDb tconst ("tt0111161" -> 111161)
// so reimports map to stable catalog ids.
func titleID(s string) (int64, bool) {
	return prefixedID(s, "tt")
}

// nameID extracts the numeric part of an IMDb nconst ("nm0000151" -> 151).
func nameID(s string) (int64, bool) {
	return prefixedID(s, "nm")
}

func prefixedID(s, prefix string) (int64, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(s[len(prefix):], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// normalizeTitle folds a display title to the ASCII form the search
// collaborator indexes.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(title)))
}
