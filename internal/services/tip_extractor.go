package services

import (
	"errors"
	"regexp"
	"strconv"
)

// tipPattern matches an amount followed by the $DEGEN marker, e.g. "100 $degen" or "12.5$DEGEN"
var tipPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*\$degen`)

// ExtractTipAmount returns the first tip amount found in text. Amounts too
// large for a float64 saturate to +Inf.
func ExtractTipAmount(text string) (float64, bool) {
	match := tipPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return amount, true
}
