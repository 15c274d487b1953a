package inventory

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Lab reports phrase the regulated compound a few different ways; each
// pattern captures the percent figure that follows the label.
var compoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total\s+delta[\s-]?9(?:\s+THC)?\D{0,20}?(\d+(?:\.\d+)?)\s*%`),
	regexp.MustCompile(`(?i)delta[\s-]?9\s+THC\D{0,20}?(\d+(?:\.\d+)?)\s*%`),
	regexp.MustCompile(`(?i)total\s+THC\D{0,20}?(\d+(?:\.\d+)?)\s*%`),
}

// ExtractCompoundPercent reads the text layer of a COA PDF and returns the
// reported regulated-compound percent. Scanned PDFs with no text layer
// return an error; there is no OCR fallback.
func ExtractCompoundPercent(path string) (float64, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return 0, fmt.Errorf("extracting PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return 0, fmt.Errorf("reading PDF text: %w", err)
	}

	return ParseCompoundPercent(buf.String())
}

// ParseCompoundPercent finds the regulated-compound figure in lab-report
// text. When several figures appear (per-batch tables), the highest one
// wins: the legal filter must judge the worst case.
func ParseCompoundPercent(text string) (float64, error) {
	text = strings.ReplaceAll(text, " ", " ")

	found := false
	max := 0.0
	for _, re := range compoundPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			found = true
			if pct > max {
				max = pct
			}
		}
	}
	if !found {
		return 0, fmt.Errorf("no regulated-compound figure found in report text")
	}
	return max, nil
}
