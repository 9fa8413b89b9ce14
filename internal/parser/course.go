package parser

import "strings"

// Course tags.
const (
	CourseHalf = "Half"
	Course10K  = "10K"
	Course5K   = "5K"
)

// ClassifyCourse maps a product name to a course tag, or "" when none of the
// known tokens appear. Half is checked first, then 10K, then 5K.
func ClassifyCourse(productName string) string {
	switch {
	case strings.Contains(productName, "하프"), strings.Contains(productName, "Half"):
		return CourseHalf
	case strings.Contains(productName, "10K"):
		return Course10K
	case strings.Contains(productName, "5K"):
		return Course5K
	}
	return ""
}

// ValidCourse reports whether c is one of the known course tags.
func ValidCourse(c string) bool {
	return c == CourseHalf || c == Course10K || c == Course5K
}
