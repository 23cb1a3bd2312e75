package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"aula-backend/internal/models"
)

type fakeDeckStore struct {
	decks       map[uuid.UUID]*models.SlideDeck
	readyCount  int
	readyMins   int
	failedWith  string
	markedReady bool
}

func (f *fakeDeckStore) GetDeck(_ context.Context, id uuid.UUID) (*models.SlideDeck, error) {
	d, ok := f.decks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeDeckStore) SetConversionStatus(_ context.Context, id uuid.UUID, status string) error {
	f.decks[id].ConversionStatus = status
	return nil
}

func (f *fakeDeckStore) MarkReady(_ context.Context, id uuid.UUID, slideCount, estimatedMinutes int) error {
	f.decks[id].ConversionStatus = models.ConversionReady
	f.markedReady = true
	f.readyCount = slideCount
	f.readyMins = estimatedMinutes
	return nil
}

func (f *fakeDeckStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.decks[id].ConversionStatus = models.ConversionFailed
	f.failedWith = reason
	return nil
}

// fakeRasterizer stands in for pdftoppm: it writes the page images the
// rename pass expects.
type fakeRasterizer struct {
	pages int
	calls []string
	err   error
}

func (f *fakeRasterizer) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return f.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= f.pages; i++ {
		if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newConverterFixture(t *testing.T, fileName string) (*ConverterService, *fakeDeckStore, *fakeRasterizer, uuid.UUID) {
	t.Helper()

	deckID := uuid.New()
	store := &fakeDeckStore{decks: map[uuid.UUID]*models.SlideDeck{
		deckID: {ID: deckID, FileName: fileName, ConversionStatus: models.ConversionPending},
	}}
	runner := &fakeRasterizer{pages: 3}

	svc := NewConverterService(store, t.TempDir(), "soffice", "pdftoppm")
	svc.runner = runner
	svc.countPages = func(string) (int, error) { return 3, nil }

	// Place the uploaded file where the pipeline expects it.
	src := svc.UploadPath(deckID, fileName)
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	return svc, store, runner, deckID
}

func TestConvertPDFProducesSlideImages(t *testing.T) {
	svc, store, runner, deckID := newConverterFixture(t, "lecture.pdf")

	if err := svc.Convert(context.Background(), deckID); err != nil {
		t.Fatalf("convert: %v", err)
	}

	if !store.markedReady {
		t.Fatalf("expected deck marked ready")
	}
	if store.readyCount != 3 {
		t.Fatalf("expected 3 slides, got %d", store.readyCount)
	}
	if store.readyMins != 6 {
		t.Fatalf("expected 6 estimated minutes for 3 slides, got %d", store.readyMins)
	}

	// PDFs skip the LibreOffice step.
	for _, call := range runner.calls {
		if call == "soffice" {
			t.Fatalf("expected no LibreOffice call for a PDF upload")
		}
	}

	for i := 0; i < 3; i++ {
		if _, err := os.Stat(svc.SlidePath(deckID, i)); err != nil {
			t.Fatalf("expected slide image %d on disk: %v", i, err)
		}
	}
}

func TestConvertPPTXRunsLibreOfficeFirst(t *testing.T) {
	svc, store, runner, deckID := newConverterFixture(t, "lecture.pptx")

	// The LibreOffice step must leave a PDF next to the upload for the
	// page counter to open.
	svc.runner = runnerFunc(func(ctx context.Context, name string, args ...string) error {
		if name == "soffice" {
			runner.calls = append(runner.calls, name)
			src := svc.UploadPath(deckID, "lecture.pptx")
			pdfPath := filepath.Join(filepath.Dir(src), deckID.String()+".pdf")
			return os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644)
		}
		return runner.Run(ctx, name, args...)
	})

	if err := svc.Convert(context.Background(), deckID); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !store.markedReady {
		t.Fatalf("expected deck marked ready")
	}
	if len(runner.calls) != 2 || runner.calls[0] != "soffice" || runner.calls[1] != "pdftoppm" {
		t.Fatalf("expected soffice then pdftoppm, got %v", runner.calls)
	}
}

type runnerFunc func(ctx context.Context, name string, args ...string) error

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) error {
	return f(ctx, name, args...)
}

func TestConvertFailureMarksDeckFailedAndCleansUp(t *testing.T) {
	svc, store, runner, deckID := newConverterFixture(t, "lecture.pdf")
	runner.err = errors.New("rasterizer exploded")

	err := svc.Convert(context.Background(), deckID)
	if err == nil {
		t.Fatalf("expected conversion error")
	}
	if store.decks[deckID].ConversionStatus != models.ConversionFailed {
		t.Fatalf("expected deck status failed, got %q", store.decks[deckID].ConversionStatus)
	}
	if store.failedWith == "" {
		t.Fatalf("expected a failure reason recorded")
	}
	if _, statErr := os.Stat(filepath.Dir(svc.SlidePath(deckID, 0))); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial slide directory removed")
	}
}

func TestConvertRejectsOversizedDecks(t *testing.T) {
	svc, store, _, deckID := newConverterFixture(t, "lecture.pdf")
	svc.countPages = func(string) (int, error) { return models.MaxSlideCount + 1, nil }

	if err := svc.Convert(context.Background(), deckID); err == nil {
		t.Fatalf("expected oversized deck to be rejected")
	}
	if store.decks[deckID].ConversionStatus != models.ConversionFailed {
		t.Fatalf("expected deck marked failed")
	}
}

func TestConvertRejectsEmptyDecks(t *testing.T) {
	svc, store, _, deckID := newConverterFixture(t, "lecture.pdf")
	svc.countPages = func(string) (int, error) { return 0, nil }

	if err := svc.Convert(context.Background(), deckID); err == nil {
		t.Fatalf("expected empty deck to be rejected")
	}
	if store.decks[deckID].ConversionStatus != models.ConversionFailed {
		t.Fatalf("expected deck marked failed")
	}
}

func TestConvertMissingUpload(t *testing.T) {
	svc, store, _, deckID := newConverterFixture(t, "lecture.pdf")
	if err := os.Remove(svc.UploadPath(deckID, "lecture.pdf")); err != nil {
		t.Fatal(err)
	}

	if err := svc.Convert(context.Background(), deckID); err == nil {
		t.Fatalf("expected missing upload to fail conversion")
	}
	if store.decks[deckID].ConversionStatus != models.ConversionFailed {
		t.Fatalf("expected deck marked failed")
	}
}
