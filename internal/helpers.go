package internal

import (
	"time"
)

// CurrentTimestamp returns the current UTC datetime in the given layout
func CurrentTimestamp(layout string) string {
	return time.Now().UTC().Format(layout)
}
