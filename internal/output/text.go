package output

import (
	"fmt"
	"strings"
)

func Indent(spaces int, multilineText string) string {
	indent := strings.Repeat(" ", spaces)
	return indent + strings.ReplaceAll(multilineText, "\n", "\n"+indent)
}

func Plural(count int, singular string, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// Count renders a quantity with the matching noun, e.g. "1 file" or "3 files".
func Count(count int, singular string, plural string) string {
	return fmt.Sprintf("%d %s", count, Plural(count, singular, plural))
}
