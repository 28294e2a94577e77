package collection

import (
	"fmt"
	"strings"
)

const maxPathLength = 512

// NormalizePath trims surrounding slashes and validates every segment.
func NormalizePath(path string) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if len(path) > maxPathLength {
		return "", fmt.Errorf("%w: too long", ErrInvalidPath)
	}

	for _, segment := range strings.Split(path, "/") {
		if err := validateSegment(segment); err != nil {
			return "", err
		}
	}
	return path, nil
}

// SplitRecordPath returns the collection path and key of a record path.
func SplitRecordPath(recordPath string) (string, string, error) {
	normalized, err := NormalizePath(recordPath)
	if err != nil {
		return "", "", err
	}

	idx := strings.LastIndex(normalized, "/")
	if idx == -1 {
		return "", "", fmt.Errorf("%w: %q has no key", ErrInvalidPath, normalized)
	}
	return normalized[:idx], normalized[idx+1:], nil
}

func JoinPath(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			trimmed = append(trimmed, part)
		}
	}
	return strings.Join(trimmed, "/")
}

func validateSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("%w: empty segment", ErrInvalidPath)
	}
	if segment == "." || segment == ".." {
		return fmt.Errorf("%w: relative segment %q", ErrInvalidPath, segment)
	}
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '@', r == '.':
		default:
			return fmt.Errorf("%w: character %q in %q", ErrInvalidPath, r, segment)
		}
	}
	return nil
}
