package templates

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance/internal/database"
	"github.com/kozaktomas/attendance/internal/database/mock"
	"github.com/kozaktomas/attendance/internal/fingerprint"
)

type fakeExtractor struct {
	mu        sync.Mutex
	embedding []float32
	err       error
	calls     int
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

func writePhoto(t *testing.T, dir, name string, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := range 32 {
		for y := range 32 {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create photo: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode photo: %v", err)
	}
	return path
}

func newStudents() *mock.MockStudentReader {
	students := mock.NewMockStudentReader()
	students.AddStudent(database.Student{ID: 1, RegistrationNumber: "CS101", Name: "Alice", PhotoPath: "alice.png"})
	students.AddStudent(database.Student{ID: 2, RegistrationNumber: "CS102", Name: "Bob", PhotoPath: "bob.png"})
	return students
}

func TestResolveCandidate(t *testing.T) {
	store := New(newStudents(), &fakeExtractor{})
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		wantID     int64
		wantErr    error
	}{
		{"exact", "CS101", 1, nil},
		{"surrounding whitespace", "  CS102\n", 2, nil},
		{"scanned payload with BOM", "\ufeffCS101", 1, nil},
		{"unknown", "ZZ999", 0, ErrNotFound},
		{"case sensitive", "cs101", 0, ErrNotFound},
		{"interior tab", "CS\t101", 0, ErrNotFound},
		{"interior zero width space", "CS\u200b101", 0, ErrNotFound},
		{"interior NUL", "CS\x00101", 0, ErrNotFound},
		{"blank", "   ", 0, ErrEmptyIdentifier},
		{"empty", "", 0, ErrEmptyIdentifier},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := store.ResolveCandidate(ctx, tc.identifier)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if s != nil {
					t.Errorf("expected nil student, got %+v", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.ID != tc.wantID {
				t.Errorf("expected student %d, got %d", tc.wantID, s.ID)
			}
		})
	}
}

func TestResolveCandidate_RoundTrip(t *testing.T) {
	students := newStudents()
	store := New(students, &fakeExtractor{})
	all, _ := students.List(context.Background())
	for _, s := range all {
		got, err := store.ResolveCandidate(context.Background(), s.RegistrationNumber)
		if err != nil {
			t.Fatalf("resolve %s: %v", s.RegistrationNumber, err)
		}
		if got.ID != s.ID {
			t.Errorf("resolve %s returned %d, want %d", s.RegistrationNumber, got.ID, s.ID)
		}
	}
}

func TestResolveCandidate_StorageError(t *testing.T) {
	students := newStudents()
	students.GetError = errors.New("connection refused")
	store := New(students, &fakeExtractor{})

	_, err := store.ResolveCandidate(context.Background(), "CS101")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("storage errors must not be reported as not found")
	}
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "alice.png", color.White)
	ext := &fakeExtractor{embedding: []float32{0.1, 0.2, 0.3}}
	store := New(newStudents(), ext, WithPhotosDir(dir))

	tpl, err := store.LoadTemplate(context.Background(), database.Student{ID: 1, RegistrationNumber: "CS101", PhotoPath: "alice.png"})
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if tpl.StudentID != 1 || len(tpl.Embedding) != 3 || tpl.PhotoHash == "" {
		t.Errorf("unexpected template %+v", tpl)
	}
}

func TestLoadTemplate_Errors(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "alice.png", color.White)
	garbage := filepath.Join(dir, "garbage.jpg")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		student database.Student
		extErr  error
		wantErr error
	}{
		{"empty path", database.Student{ID: 1, PhotoPath: ""}, nil, ErrPhotoMissing},
		{"missing file", database.Student{ID: 1, PhotoPath: "nobody.png"}, nil, ErrPhotoMissing},
		{"unreadable image", database.Student{ID: 1, PhotoPath: garbage}, nil, ErrPhotoMissing},
		{"no face", database.Student{ID: 1, PhotoPath: "alice.png"}, fingerprint.ErrNoFace, ErrNoFaceDetected},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ext := &fakeExtractor{embedding: []float32{1}, err: tc.extErr}
			store := New(newStudents(), ext, WithPhotosDir(dir))
			_, err := store.LoadTemplate(context.Background(), tc.student)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadTemplate_ExtractorFailureIsNotNoFace(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "alice.png", color.White)
	store := New(newStudents(), &fakeExtractor{err: errors.New("API error (status 500)")}, WithPhotosDir(dir))

	_, err := store.LoadTemplate(context.Background(), database.Student{ID: 1, PhotoPath: "alice.png"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoFaceDetected) || errors.Is(err, ErrPhotoMissing) {
		t.Errorf("unexpected classification: %v", err)
	}
}

func TestLoadTemplate_MemoryCache(t *testing.T) {
	dir := t.TempDir()
	path := writePhoto(t, dir, "alice.png", color.White)
	ext := &fakeExtractor{embedding: []float32{0.5}}
	store := New(newStudents(), ext, WithPhotosDir(dir), WithMemoryCache(time.Minute))
	student := database.Student{ID: 1, PhotoPath: "alice.png"}

	for range 3 {
		if _, err := store.LoadTemplate(context.Background(), student); err != nil {
			t.Fatalf("LoadTemplate: %v", err)
		}
	}
	if ext.calls != 1 {
		t.Errorf("expected 1 extraction with cache, got %d", ext.calls)
	}

	// A replaced photo changes the hash and is recomputed.
	writePhoto(t, dir, filepath.Base(path), color.Black)
	if _, err := store.LoadTemplate(context.Background(), student); err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if ext.calls != 2 {
		t.Errorf("expected recomputation after photo change, got %d calls", ext.calls)
	}
}

func TestLoadTemplate_PersistentCache(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "alice.png", color.White)
	persistent := mock.NewMockTemplateCache()
	student := database.Student{ID: 1, PhotoPath: "alice.png"}

	first := &fakeExtractor{embedding: []float32{0.7, 0.8}}
	if _, err := New(newStudents(), first, WithPhotosDir(dir), WithPersistentCache(persistent)).LoadTemplate(context.Background(), student); err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if persistent.SaveCalls != 1 {
		t.Fatalf("expected template to be persisted, got %d saves", persistent.SaveCalls)
	}

	// A fresh store (restart) reuses the persisted template.
	second := &fakeExtractor{embedding: []float32{9, 9}}
	tpl, err := New(newStudents(), second, WithPhotosDir(dir), WithPersistentCache(persistent)).LoadTemplate(context.Background(), student)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if second.calls != 0 {
		t.Errorf("expected no extraction, got %d", second.calls)
	}
	if tpl.Embedding[0] != 0.7 {
		t.Errorf("expected persisted embedding, got %v", tpl.Embedding)
	}
}

func TestLoadTemplate_PersistentCacheErrorsAreNotFatal(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "alice.png", color.White)
	persistent := mock.NewMockTemplateCache()
	persistent.GetError = errors.New("db down")
	persistent.SaveError = errors.New("db down")

	ext := &fakeExtractor{embedding: []float32{0.1}}
	store := New(newStudents(), ext, WithPhotosDir(dir), WithPersistentCache(persistent))
	if _, err := store.LoadTemplate(context.Background(), database.Student{ID: 1, PhotoPath: "alice.png"}); err != nil {
		t.Fatalf("cache errors should not fail LoadTemplate: %v", err)
	}
}

// Unknown identifier then a known one with a faceless photo.
func TestResolveThenLoad_UnknownThenNoFace(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "bob.png", color.Gray{Y: 128})
	store := New(newStudents(), &fakeExtractor{err: fingerprint.ErrNoFace}, WithPhotosDir(dir))
	ctx := context.Background()

	if _, err := store.ResolveCandidate(ctx, "XX000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s, err := store.ResolveCandidate(ctx, "CS102")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := store.LoadTemplate(ctx, *s); !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestWarm(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "alice.png", color.White)

	students := newStudents()
	students.AddStudent(database.Student{ID: 3, RegistrationNumber: "CS103", Name: "Carol", PhotoPath: ""})
	ext := &fakeExtractor{embedding: []float32{0.3}}
	store := New(students, ext, WithPhotosDir(dir), WithMemoryCache(time.Minute))

	var last, total int
	report, err := store.Warm(context.Background(), func(done, n int) { last, total = done, n })
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if report.Loaded != 1 {
		t.Errorf("expected 1 loaded, got %d", report.Loaded)
	}
	if len(report.MissingPhoto) != 2 {
		t.Errorf("expected bob and carol missing, got %v", report.MissingPhoto)
	}
	if last != 3 || total != 3 {
		t.Errorf("progress = %d/%d, want 3/3", last, total)
	}
}
