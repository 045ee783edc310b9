package utils

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil || result < 1 {
		return defaultValue
	}

	return result
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// SplitList splits a comma separated setting, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GenerateBookingCode returns a human readable booking reference.
// Format: BOOK-YYYYMMDD-HHMMSS-NNNN
func GenerateBookingCode(now time.Time) string {
	return fmt.Sprintf("BOOK-%s-%s-%04d", now.Format("20060102"), now.Format("150405"), rand.Intn(10000))
}
