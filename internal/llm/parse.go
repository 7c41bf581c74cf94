package llm

import (
	"regexp"
	"strconv"
	"strings"
)

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// LeadingInt parses the integer a model reply starts with. Failure texts and
// replies that do not start with a number are rejected.
func LeadingInt(resp string) (int, bool) {
	if IsFailure(resp) {
		return 0, false
	}
	m := leadingInt.FindStringSubmatch(resp)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

var (
	bullet      = regexp.MustCompile(`^[-*•]+\s*`)
	enumeration = regexp.MustCompile(`^\d+[.)]\s+`)
)

// Lines splits a reply into trimmed content lines. Blank lines and lines
// starting with '#' are dropped, and leading bullets ("-", "*", "•") are
// removed. A failure text yields no lines.
func Lines(resp string) []string {
	if IsFailure(resp) {
		return nil
	}
	var out []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(bullet.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// StripEnumeration removes a leading "1." or "2)" list number.
func StripEnumeration(line string) string {
	return strings.TrimSpace(enumeration.ReplaceAllString(line, ""))
}

// Unquote trims whitespace, surrounding quotes and brackets from a field.
func Unquote(field string) string {
	return strings.Trim(strings.TrimSpace(field), "\"'`[]()<>")
}
