package server

import (
	"net/url"
	"sync"
)

// PatchLocation is the address bar of a connected page. ReplaceURL does
// not change anything locally until the frame is handed to send, which
// forwards it to the client as a url_replace frame.
type PatchLocation struct {
	mu      sync.Mutex
	current *url.URL
	send    func(Frame) error
}

// NewPatchLocation creates a location positioned at u that reports
// replacements through send.
func NewPatchLocation(u *url.URL, send func(Frame) error) *PatchLocation {
	cp := *u
	return &PatchLocation{current: &cp, send: send}
}

// URL returns a copy of the page URL.
func (l *PatchLocation) URL() (*url.URL, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l.current
	return &cp, nil
}

// ReplaceURL sends a url_replace frame and, once sent, records u as the
// page URL.
func (l *PatchLocation) ReplaceURL(u *url.URL) error {
	if l.send != nil {
		if err := l.send(Frame{Type: FrameURLReplace, URL: u.String()}); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *u
	l.current = &cp
	return nil
}
