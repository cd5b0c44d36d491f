package validate

import (
	"fmt"
	"regexp"
	"strconv"
)

// Path-safe user ids: letters, digits, underscore and hyphen, 1-64 chars.
var userIDRx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// MaxListLimit caps ?limit= on list endpoints.
const MaxListLimit = 500

// UserID validates a user id taken from the URL path.
func UserID(v string) error {
	if v == "" {
		return fmt.Errorf("userId is required")
	}
	if !userIDRx.MatchString(v) {
		return fmt.Errorf("userId must match %s", userIDRx.String())
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Limit parses an optional ?limit= value. Empty means 0, the store default.
func Limit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 || n > MaxListLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxListLimit)
	}
	return n, nil
}
