package segment

import (
	"regexp"
	"strings"
)

// Options tunes text cleanup for classification.
type Options struct {
	// MinAxisArtifacts is the minimum number of axis-artifact lines a
	// candidate must contain before they are filtered. Below this the
	// digits are assumed to be real content (answer values, constants).
	MinAxisArtifacts int
}

// DefaultMinAxisArtifacts is the filter threshold used when Options
// leaves MinAxisArtifacts at zero.
const DefaultMinAxisArtifacts = 3

var (
	markdownImageRE  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	includeGfxRE     = regexp.MustCompile(`\\includegraphics(\[[^\]]*\])?\{[^}]*\}`)
	htmlImageRE      = regexp.MustCompile(`(?i)<img[^>]*>`)
	tableRowRE       = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	tableSepRE       = regexp.MustCompile(`^\s*[|:\-\s]+\s*$`)
	axisNumberRE     = regexp.MustCompile(`^\s*-?\d{1,2}\s*$`)
	axisLabelRE      = regexp.MustCompile(`^\s*[xyXYOo]\s*$`)
	blankRunRE       = regexp.MustCompile(`\n{3,}`)
	inlineSpaceRunRE = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanForClassification strips visual markup from candidate text and,
// when the candidate has bound visual evidence, filters stray axis labels
// that OCR lifts out of graphs. hasVisual gates the axis filter: without a
// graph on the candidate, bare digits are kept as content.
func CleanForClassification(text string, hasVisual bool, opts Options) string {
	text = markdownImageRE.ReplaceAllString(text, "")
	text = includeGfxRE.ReplaceAllString(text, "")
	text = htmlImageRE.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if tableRowRE.MatchString(ln) && strings.Count(ln, "|") >= 2 {
			continue
		}
		if tableSepRE.MatchString(ln) && strings.Contains(ln, "-") && strings.Contains(ln, "|") {
			continue
		}
		kept = append(kept, ln)
	}

	if hasVisual {
		kept = filterAxisArtifacts(kept, opts)
	}

	out := strings.Join(kept, "\n")
	out = inlineSpaceRunRE.ReplaceAllString(out, " ")
	out = blankRunRE.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// filterAxisArtifacts drops lines that look like axis ticks or labels, but
// only when the page has enough of them to look like a lifted graph.
func filterAxisArtifacts(lines []string, opts Options) []string {
	threshold := opts.MinAxisArtifacts
	if threshold <= 0 {
		threshold = DefaultMinAxisArtifacts
	}

	artifacts := 0
	for _, ln := range lines {
		if isAxisArtifact(ln) {
			artifacts++
		}
	}
	if artifacts < threshold {
		return lines
	}

	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if isAxisArtifact(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return kept
}

func isAxisArtifact(line string) bool {
	return axisNumberRE.MatchString(line) || axisLabelRE.MatchString(line)
}
