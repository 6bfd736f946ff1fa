package service

import (
	"strconv"
	"strings"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

// DefaultMaxSubjectUnits is the upper bound of the passing unit band for a
// single credit-bearing subject.
const DefaultMaxSubjectUnits = 15

// ClassifyUnits computes the remark for an OCR-extracted unit count.
// Units arrive as free text from the extractor, so parsing is part of the
// rule: anything unparseable is invalid. Passing requires
// 0 < units <= maxUnits; zero, negatives, and oversized loads all fail.
func ClassifyUnits(raw string, maxUnits float64) models.Remark {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxSubjectUnits
	}
	units, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return models.RemarkFailed
	}
	if units > 0 && units <= maxUnits {
		return models.RemarkPassed
	}
	return models.RemarkFailed
}
