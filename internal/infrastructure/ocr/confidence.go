package ocr

import (
	"regexp"
	"strings"
)

var (
	reTaxForm = regexp.MustCompile(`\b(w-2|w2|1099|1040|schedule [a-e]|form \d{3,4})\b`)
	reMoney   = regexp.MustCompile(`\$\s?\d{1,3}(,\d{3})*(\.\d{2})?|\b\d+\.\d{2}\b`)
	reDateish = regexp.MustCompile(`\b(19|20)\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	reTaxID   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{2}-\d{7}\b`)
)

// naive heuristic confidence based on decoded text characteristics:
// recognizable tax artifacts each add a fixed boost over a low base.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if reTaxForm.MatchString(txtL) {
		score += 0.2
	}
	if reMoney.MatchString(txtL) {
		score += 0.15
	}
	if reDateish.MatchString(txtL) {
		score += 0.15
	}
	if reTaxID.MatchString(txtL) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
