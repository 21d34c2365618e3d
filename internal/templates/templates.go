// Package templates resolves identifiers to enrolled students and derives
// their face templates from the enrollment photos.
package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/database"
	"github.com/kozaktomas/attendance/internal/facematch"
	"github.com/kozaktomas/attendance/internal/fingerprint"
	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrNotFound        = errors.New("student not found")
	ErrEmptyIdentifier = errors.New("empty identifier")
	ErrNoFaceDetected  = errors.New("no face in stored photo")
	ErrPhotoMissing    = errors.New("stored photo not found")
)

// Extractor computes the embedding of the first face in an encoded image.
// It returns fingerprint.ErrNoFace when the image contains no face.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// Template is the reference embedding of one student.
type Template struct {
	StudentID int64
	PhotoHash string
	Embedding []float32
}

// Store resolves candidates and loads their templates.
type Store struct {
	students   database.StudentReader
	extractor  Extractor
	persistent database.TemplateCache
	memory     *gocache.Cache
	photosDir  string
	maxDim     int
	model      string
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPhotosDir sets the base directory for relative photo paths.
func WithPhotosDir(dir string) Option {
	return func(s *Store) { s.photosDir = dir }
}

// WithMemoryCache keeps derived templates in memory for ttl. Zero disables it.
func WithMemoryCache(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.memory = gocache.New(ttl, 2*ttl)
		}
	}
}

// WithPersistentCache stores derived templates in a backend table.
func WithPersistentCache(cache database.TemplateCache) Option {
	return func(s *Store) { s.persistent = cache }
}

// WithCompareMaxDim sets the size enrollment photos are scaled to before extraction.
func WithCompareMaxDim(maxDim int) Option {
	return func(s *Store) { s.maxDim = maxDim }
}

// WithModel records the embedding model name on persisted templates.
func WithModel(model string) Option {
	return func(s *Store) { s.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a template store.
func New(students database.StudentReader, extractor Extractor, opts ...Option) *Store {
	s := &Store{
		students:  students,
		extractor: extractor,
		maxDim:    constants.DefaultCompareMaxDim,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveCandidate looks up a student by registration number.
// Surrounding whitespace and invisible characters are stripped; the comparison is exact.
func (s *Store) ResolveCandidate(ctx context.Context, identifier string) (*database.Student, error) {
	id := facematch.NormalizeIdentifier(identifier)
	if id == "" {
		return nil, ErrEmptyIdentifier
	}

	student, err := s.students.GetByRegistrationNumber(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", id, err)
	}
	if student == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return student, nil
}

// photoPath returns the absolute location of a student's enrollment photo.
func (s *Store) photoPath(student database.Student) string {
	if filepath.IsAbs(student.PhotoPath) || s.photosDir == "" {
		return student.PhotoPath
	}
	return filepath.Join(s.photosDir, student.PhotoPath)
}

func cacheKey(studentID int64, photoHash string) string {
	return strconv.FormatInt(studentID, 10) + ":" + photoHash
}

// LoadTemplate returns the embedding of the first face in the student's enrollment photo.
func (s *Store) LoadTemplate(ctx context.Context, student database.Student) (*Template, error) {
	if student.PhotoPath == "" {
		return nil, fmt.Errorf("%w: no photo recorded for %s", ErrPhotoMissing, student.RegistrationNumber)
	}

	path := s.photoPath(student)
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the enrollment record
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPhotoMissing, err)
	}
	hash := fingerprint.PhotoHash(data)
	key := cacheKey(student.ID, hash)

	if s.memory != nil {
		if cached, ok := s.memory.Get(key); ok {
			if tpl, ok := cached.(*Template); ok {
				return tpl, nil
			}
		}
	}

	if s.persistent != nil {
		stored, err := s.persistent.GetTemplate(ctx, student.ID, hash)
		if err != nil {
			s.logger.Warn("template cache lookup failed", "student_id", student.ID, "error", err)
		} else if stored != nil && len(stored.Embedding) > 0 {
			tpl := &Template{StudentID: student.ID, PhotoHash: hash, Embedding: stored.Embedding}
			s.remember(key, tpl)
			return tpl, nil
		}
	}

	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPhotoMissing, path, err)
	}
	encoded, err := fingerprint.EncodeForComparison(img, s.maxDim, constants.CompareJPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPhotoMissing, path, err)
	}

	embedding, err := s.extractor.Extract(ctx, encoded)
	if errors.Is(err, fingerprint.ErrNoFace) {
		return nil, fmt.Errorf("%w: %s", ErrNoFaceDetected, path)
	}
	if err != nil {
		return nil, fmt.Errorf("extracting face from %s: %w", path, err)
	}

	tpl := &Template{StudentID: student.ID, PhotoHash: hash, Embedding: embedding}
	s.remember(key, tpl)

	if s.persistent != nil {
		err := s.persistent.SaveTemplate(ctx, database.StoredTemplate{
			StudentID: student.ID,
			PhotoHash: hash,
			Embedding: embedding,
			Model:     s.model,
			Dim:       len(embedding),
		})
		if err != nil {
			s.logger.Warn("saving template failed", "student_id", student.ID, "error", err)
		}
	}

	return tpl, nil
}

func (s *Store) remember(key string, tpl *Template) {
	if s.memory != nil {
		s.memory.SetDefault(key, tpl)
	}
}

// Forget drops all in-memory templates.
func (s *Store) Forget() {
	if s.memory != nil {
		s.memory.Flush()
	}
}
