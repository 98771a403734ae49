package caption

import (
	"fmt"
	"math"
)

// Label maps an annotation confidence to a qualitative certainty phrase
func Label(confidence float64) string {
	switch {
	case confidence > 0.90:
		return "Very Sure"
	case confidence > 0.75:
		return "Kinda Sure"
	case confidence > 0.50:
		return "Somewhat Sure"
	default:
		return "Not Sure"
	}
}

// Percent rounds confidence*100 to the nearest integer, halves to even
func Percent(confidence float64) int {
	return int(math.RoundToEven(confidence * 100))
}

// Compose builds the three-line caption:
//
//	'<text>'
//	<label> - <pct>%
//	<permalink>
func Compose(text string, confidence float64, permalink string) string {
	return fmt.Sprintf("'%s'\n%s - %d%%\n%s", text, Label(confidence), Percent(confidence), permalink)
}
