package server

import (
	"sync"

	"wodbox/internal/logger"
)

// Navigator records where the session state last sent the client. The
// next auth response hands that path back as its redirect.
type Navigator struct {
	mu   sync.Mutex
	last string
}

func NewNavigator() *Navigator {
	return &Navigator{}
}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	n.last = path
	n.mu.Unlock()
	logger.Debug("Navigation requested", "path", path)
}

// Take returns the pending path, or fallback when there is none, and
// clears it.
func (n *Navigator) Take(fallback string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	path := n.last
	n.last = ""
	if path == "" {
		return fallback
	}
	return path
}
