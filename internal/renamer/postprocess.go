package renamer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
)

// PostProcessor is an optional side-effect step invoked after a
// successful rename. Failures are warnings; they never turn the rename
// itself into a failure.
type PostProcessor interface {
	Name() string
	Apply(match *models.Match, destinationPath string) error
}

// ArtworkProcessor downloads the matched title's poster next to the
// renamed file.
type ArtworkProcessor struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewArtworkProcessor creates an artwork post-processor.
func NewArtworkProcessor(logger *logrus.Logger) *ArtworkProcessor {
	return &ArtworkProcessor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Name implements PostProcessor.
func (p *ArtworkProcessor) Name() string { return "artwork" }

// Apply downloads the poster referenced by the match metadata into the
// destination directory. A match without artwork is a no-op.
func (p *ArtworkProcessor) Apply(match *models.Match, destinationPath string) error {
	if match == nil || match.Metadata.ArtworkURL == "" {
		return nil
	}

	posterPath := filepath.Join(filepath.Dir(destinationPath), "poster.jpg")
	if _, err := os.Stat(posterPath); err == nil {
		// Poster already present, e.g. from an earlier episode of the
		// same season.
		return nil
	}

	resp, err := p.httpClient.Get(match.Metadata.ArtworkURL)
	if err != nil {
		return fmt.Errorf("artwork download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artwork download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(posterPath)
	if err != nil {
		return fmt.Errorf("failed to create poster file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(posterPath)
		return fmt.Errorf("failed to write poster: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finish poster write: %w", err)
	}

	p.logger.WithField("poster", posterPath).Debug("Artwork downloaded")
	return nil
}
