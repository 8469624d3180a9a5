package core

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the layout of every calendar date stored or accepted by the API.
const DateLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd returns the module root (the closest parent directory holding a go.mod),
// falling back to the working directory when none is found.
// go test changes the working directory to the package being tested.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// Round rounds `val` half away from zero to `places` decimals.
func Round(val float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(val*p) / p
}

// Percent returns part/total*100, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DaysAgo returns the calendar date `days` days before `now`, formatted with DateLayout.
func DaysAgo(now time.Time, days int) string {
	return now.UTC().AddDate(0, 0, -days).Format(DateLayout)
}

// IsDate reports whether `s` is a valid YYYY-MM-DD date.
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// StringPtr returns a pointer to `s`.
func StringPtr(s string) *string { return &s }
