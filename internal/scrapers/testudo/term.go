package testudo

import (
	"fmt"
	"time"
)

// CurrentTermID guesses the term being registered for, testudo term ids are
// YYYYMM where 01 is spring and 08 is fall. Registration for spring opens in
// october so october onwards targets the next year's spring.
func CurrentTermID(now time.Time) string {
	year := now.Year()
	switch month := now.Month(); {
	case month >= time.October:
		return fmt.Sprintf("%d01", year+1)
	case month <= time.February:
		return fmt.Sprintf("%d01", year)
	default:
		return fmt.Sprintf("%d08", year)
	}
}
