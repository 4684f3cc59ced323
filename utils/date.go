package utils

import (
	"time"
)

// FormatDate renders the date part used in invoice numbers.
func FormatDate(date time.Time) string {
	return date.UTC().Format("20060102")
}

// AddMonths extends a subscription start by the purchased number of months.
func AddMonths(date time.Time, months int64) time.Time {
	return date.AddDate(0, int(months), 0)
}
