package main

import (
	"fmt"
	"strings"

	fsync "github.com/fintrack/fintrack/internal/sync"
)

// resolveID expands a unique id prefix to the full id.
func resolveID(s *session, prefix string) (string, error) {
	if _, ok := s.engine.Find(prefix); ok {
		return prefix, nil
	}

	var matches []string
	for _, t := range s.engine.Snapshot() {
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", fsync.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous id %q matches %d transactions", prefix, len(matches))
	}
}
