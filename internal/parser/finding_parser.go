package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var findingRegex = regexp.MustCompile(`^(\d{6})[-/ ](\d{1,2})$`)

// NormalizeFindingID normalizes finding references to the stored
// <work order>-<NN> form.
// Accepts formats like:
// - "482913-01", "482913-1" -> "482913-01"
// - "482913/3", "482913 3" -> "482913-03"
func NormalizeFindingID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	m := findingRegex.FindStringSubmatch(ref)
	if m == nil {
		return "", fmt.Errorf("invalid finding reference %q. Use: <work order>-<NN> (e.g. 482913-01)", ref)
	}
	n, _ := strconv.Atoi(m[2])
	if n < 1 {
		return "", fmt.Errorf("invalid finding number in %q", ref)
	}
	return fmt.Sprintf("%s-%02d", m[1], n), nil
}

// IsValidFindingFormat checks if a string looks like a finding reference
func IsValidFindingFormat(ref string) bool {
	_, err := NormalizeFindingID(ref)
	return err == nil
}

// NormalizeToken trims and uppercases free-text identifiers such as
// employee ids and task codes. Identity is never checked.
func NormalizeToken(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
