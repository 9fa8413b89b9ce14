package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCourse(t *testing.T) {
	cases := map[string]string{
		"2026 성남 하프코스":      CourseHalf,
		"Half Marathon":     CourseHalf,
		"Half Marathon 10K": CourseHalf,
		"10K 일반":            Course10K,
		"5K 일반":             Course5K,
		"기타상품":              "",
		"half marathon":     "",
		"":                  "",
	}

	for name, want := range cases {
		assert.Equal(t, want, ClassifyCourse(name), name)
	}
}

func TestValidCourse(t *testing.T) {
	assert.True(t, ValidCourse(Course10K))
	assert.False(t, ValidCourse("42K"))
	assert.False(t, ValidCourse(""))
}
