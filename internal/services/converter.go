package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"aula-backend/internal/models"
)

// commandRunner abstracts the external converter binaries so the pipeline
// is testable without LibreOffice installed.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

type deckStore interface {
	GetDeck(ctx context.Context, id uuid.UUID) (*models.SlideDeck, error)
	SetConversionStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkReady(ctx context.Context, id uuid.UUID, slideCount, estimatedMinutes int) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ConverterService turns an uploaded deck file into per-slide PNGs.
// Decks become ready only after every page image is on disk; any failure
// leaves the deck failed with no partial image set.
type ConverterService struct {
	deckRepo       deckStore
	storagePath    string
	libreOfficeBin string
	pdftoppmBin    string
	runner         commandRunner
	countPages     func(path string) (int, error)
}

func NewConverterService(deckRepo deckStore, storagePath, libreOfficeBin, pdftoppmBin string) *ConverterService {
	return &ConverterService{
		deckRepo:       deckRepo,
		storagePath:    storagePath,
		libreOfficeBin: libreOfficeBin,
		pdftoppmBin:    pdftoppmBin,
		runner:         execRunner{},
		countPages:     countPDFPages,
	}
}

// UploadPath is where the raw uploaded file for a deck lives.
func (s *ConverterService) UploadPath(deckID uuid.UUID, fileName string) string {
	return filepath.Join(s.storagePath, "uploads", deckID.String()+filepath.Ext(fileName))
}

// SlidePath is where slide image i (0-based) for a deck lives.
func (s *ConverterService) SlidePath(deckID uuid.UUID, index int) string {
	return filepath.Join(s.storagePath, "slides", deckID.String(), fmt.Sprintf("%d.png", index))
}

func (s *ConverterService) slidesDir(deckID uuid.UUID) string {
	return filepath.Join(s.storagePath, "slides", deckID.String())
}

// Convert runs the full pipeline for one deck. The returned error is the
// job failure reason; the deck row is already marked failed when non-nil.
func (s *ConverterService) Convert(ctx context.Context, deckID uuid.UUID) error {
	deck, err := s.deckRepo.GetDeck(ctx, deckID)
	if err != nil {
		return fmt.Errorf("deck %s not found: %w", deckID, err)
	}

	if err := s.deckRepo.SetConversionStatus(ctx, deckID, models.ConversionConverting); err != nil {
		return err
	}

	count, err := s.convert(ctx, deck)
	if err != nil {
		s.cleanup(deckID)
		if markErr := s.deckRepo.MarkFailed(ctx, deckID, err.Error()); markErr != nil {
			log.Printf("failed to mark deck %s failed: %v", deckID, markErr)
		}
		return err
	}

	// Two minutes of talking per slide is the default pacing estimate.
	if err := s.deckRepo.MarkReady(ctx, deckID, count, count*2); err != nil {
		return err
	}
	return nil
}

func (s *ConverterService) convert(ctx context.Context, deck *models.SlideDeck) (int, error) {
	srcPath := s.UploadPath(deck.ID, deck.FileName)
	if _, err := os.Stat(srcPath); err != nil {
		return 0, fmt.Errorf("uploaded file missing: %w", err)
	}

	pdfPath := srcPath
	if !strings.EqualFold(filepath.Ext(deck.FileName), ".pdf") {
		outDir := filepath.Dir(srcPath)
		if err := s.runner.Run(ctx, s.libreOfficeBin,
			"--headless", "--convert-to", "pdf", "--outdir", outDir, srcPath); err != nil {
			return 0, fmt.Errorf("slide conversion to PDF failed: %w", err)
		}
		base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
		pdfPath = filepath.Join(outDir, base+".pdf")
		defer os.Remove(pdfPath)
	}

	pageCount, err := s.countPages(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("could not read PDF page count: %w", err)
	}
	if pageCount == 0 {
		return 0, fmt.Errorf("deck has no pages")
	}
	if pageCount > models.MaxSlideCount {
		return 0, fmt.Errorf("deck has %d slides, the limit is %d", pageCount, models.MaxSlideCount)
	}

	dir := s.slidesDir(deck.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	// pdftoppm writes slide-1.png .. slide-N.png.
	if err := s.runner.Run(ctx, s.pdftoppmBin,
		"-png", "-r", "150", pdfPath, filepath.Join(dir, "slide")); err != nil {
		return 0, fmt.Errorf("rasterization failed: %w", err)
	}

	// Rename to the 0-based names the serving path expects. pdftoppm pads
	// page numbers, so try the padded forms too.
	for i := 0; i < pageCount; i++ {
		found := false
		for _, pattern := range []string{"slide-%d.png", "slide-%02d.png", "slide-%03d.png"} {
			src := filepath.Join(dir, fmt.Sprintf(pattern, i+1))
			if _, err := os.Stat(src); err == nil {
				if err := os.Rename(src, s.SlidePath(deck.ID, i)); err != nil {
					return 0, err
				}
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("rasterized image for slide %d missing", i)
		}
	}

	return pageCount, nil
}

func (s *ConverterService) cleanup(deckID uuid.UUID) {
	if err := os.RemoveAll(s.slidesDir(deckID)); err != nil {
		log.Printf("failed to remove partial slides for deck %s: %v", deckID, err)
	}
}

func countPDFPages(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return reader.NumPage(), nil
}
