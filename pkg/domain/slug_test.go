package domain

import (
	"regexp"
	"testing"
)

func TestNewProjectName(t *testing.T) {
	kebab := regexp.MustCompile(`^[a-z]+-[a-z]+$`)
	for i := 0; i < 50; i++ {
		if name := NewProjectName(); !kebab.MatchString(name) {
			t.Fatalf("NewProjectName() = %q, want two kebab-case words", name)
		}
	}
}
