package extract

import "regexp"

// UnknownDate is returned by InferDate when no date pattern matches.
const UnknownDate = "Unknown"

var (
	// "January 5, 2024", "january 5 2024", "March-3,2023"
	monthNameDate = regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\b[\s\-.]?\d{1,2},?\s?\d{4}`)

	// "03-05-2024", "3/5/24"
	numericDate = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
)

// InferDate extracts a meeting date from a link label or file name. A month
// name date is preferred over a numeric one. The match is returned as
// written and is not checked against the calendar.
func InferDate(label string) string {
	if match := monthNameDate.FindString(label); match != "" {
		return match
	}
	if match := numericDate.FindString(label); match != "" {
		return match
	}
	return UnknownDate
}
