package assets

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count for %s: %w", path, err)
	}
	return count, nil
}

// ValidateSource checks that path is a readable PDF covering at least
// maxPage pages.
func ValidateSource(path string, maxPage int) error {
	count, err := PageCount(path)
	if err != nil {
		return err
	}
	if maxPage > count {
		return fmt.Errorf("document %s has %d pages, OCR result references page %d", path, count, maxPage)
	}
	return nil
}
