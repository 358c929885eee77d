package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"github.com/parksorry96/mathhub/internal/ocr"
	"github.com/parksorry96/mathhub/internal/segment"
	"github.com/parksorry96/mathhub/internal/storage"
)

// renderDPI is the resolution pages are rasterized at before cropping.
const renderDPI = 300

// pdfPointsPerInch converts between PDF points and render pixels.
const pdfPointsPerInch = 72.0

// outputScale sizes extracted crops at twice their page-point dimensions.
const outputScale = 2.0

// DefaultPrefix is the object-key prefix for extracted problem assets.
const DefaultPrefix = "ocr-problem-assets"

// Uploader stores extracted crops. Satisfied by storage.Client.
type Uploader interface {
	Put(ctx context.Context, objectKey string, body []byte, contentType string) error
	StorageKey(objectKey string) string
}

// Asset describes one extracted crop after upload.
type Asset struct {
	Category       string        `json:"category"`
	Source         string        `json:"source"`
	ObjectKey      string        `json:"object_key"`
	StorageKey     string        `json:"storage_key"`
	NormalizedBBox *segment.BBox `json:"normalized_bbox,omitempty"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
}

// Extractor crops hinted regions out of rendered PDF pages and uploads them.
type Extractor struct {
	uploader Uploader
	prefix   string
	logger   *slog.Logger
}

// NewExtractor returns an Extractor writing under the given key prefix.
func NewExtractor(uploader Uploader, prefix string, logger *slog.Logger) *Extractor {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{uploader: uploader, prefix: prefix, logger: logger}
}

// ExtractCandidate renders the candidate's page once, crops every hinted
// region and uploads the crops. Hints whose regions cannot be resolved are
// skipped, not fatal.
func (e *Extractor) ExtractCandidate(ctx context.Context, pdfPath, jobID string, page ocr.Page, cand segment.Candidate, hints []Hint) ([]Asset, error) {
	if len(hints) == 0 {
		return nil, nil
	}

	img, err := renderPage(pdfPath, page.PageNo)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page.PageNo, err)
	}
	bounds := img.Bounds()

	// OCR geometry is in page points. When the provider reported no page
	// dimensions, hint boxes are taken to be in render-pixel space already.
	pageW, pageH := page.Width, page.Height
	pxPerPoint := float64(renderDPI) / pdfPointsPerInch
	if pageW <= 0 || pageH <= 0 {
		pageW = float64(bounds.Dx())
		pageH = float64(bounds.Dy())
		pxPerPoint = 1
	}

	var assets []Asset
	for i, hint := range hints {
		box := hint.BBox
		if box == nil {
			box = &segment.BBox{X1: 0, Y1: 0, X2: pageW, Y2: pageH}
		}
		clip, err := ResolveClip(box, pageW, pageH)
		if err != nil {
			e.logger.Warn("skipping asset hint",
				"job_id", jobID, "page", page.PageNo, "ordinal", cand.Ordinal,
				"category", hint.Category, "error", err)
			continue
		}

		crop := image.Rect(
			bounds.Min.X+int(clip.X1*pxPerPoint),
			bounds.Min.Y+int(clip.Y1*pxPerPoint),
			bounds.Min.X+int(clip.X2*pxPerPoint),
			bounds.Min.Y+int(clip.Y2*pxPerPoint),
		).Intersect(bounds)
		if crop.Empty() {
			continue
		}

		outW := max(1, int(clip.Width()*outputScale))
		outH := max(1, int(clip.Height()*outputScale))
		out := image.NewRGBA(image.Rect(0, 0, outW, outH))
		xdraw.CatmullRom.Scale(out, out.Bounds(), img, crop, xdraw.Src, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, out); err != nil {
			return assets, fmt.Errorf("encode crop: %w", err)
		}

		objectKey := storage.AssetObjectKey(e.prefix, jobID, page.PageNo, cand.Ordinal, i+1, hint.Category)
		if err := e.uploader.Put(ctx, objectKey, buf.Bytes(), "image/png"); err != nil {
			return assets, fmt.Errorf("upload asset %s: %w", objectKey, err)
		}

		assets = append(assets, Asset{
			Category:       hint.Category,
			Source:         hint.Source,
			ObjectKey:      objectKey,
			StorageKey:     e.uploader.StorageKey(objectKey),
			NormalizedBBox: Normalize(clip, pageW, pageH),
			Width:          outW,
			Height:         outH,
		})
	}

	return assets, nil
}

// renderPage rasterizes a single PDF page using pdftoppm (poppler-utils).
func renderPage(pdfPath string, pageNo int) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "mathhub-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	pageStr := fmt.Sprintf("%d", pageNo)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", renderDPI),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	f, err := os.Open(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return img, nil
}
