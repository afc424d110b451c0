package metrics

import "strings"

// Tool error categories, in classification priority order. The order and
// the match substrings are a compatibility contract: changing them
// changes reported statistics.
const (
	CategoryCommandFailed = "Command Failed"
	CategoryUserRejected  = "User Rejected"
	CategoryEditFailed    = "Edit Failed"
	CategoryFileChanged   = "File Changed"
	CategoryFileTooLarge  = "File Too Large"
	CategoryFileNotFound  = "File Not Found"
	CategoryOther         = "Other"
)

var errorCategories = []struct {
	name       string
	substrings []string
}{
	{CategoryCommandFailed, []string{"exit code"}},
	{CategoryUserRejected, []string{"rejected", "doesn't want"}},
	{CategoryEditFailed, []string{"string to replace not found", "no changes"}},
	{CategoryFileChanged, []string{"modified since read"}},
	{CategoryFileTooLarge, []string{"exceeds maximum", "too large"}},
	{CategoryFileNotFound, []string{"file not found", "does not exist"}},
}

// ClassifyToolError maps an error message to its category by
// case-insensitive substring match; the first matching category wins.
func ClassifyToolError(msg string) string {
	lower := strings.ToLower(msg)
	for _, cat := range errorCategories {
		for _, sub := range cat.substrings {
			if strings.Contains(lower, sub) {
				return cat.name
			}
		}
	}
	return CategoryOther
}
