package urlcodec

import (
	"net/url"
	"strings"
	"sync"

	synerrors "github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/value"
)

// Location is the location medium: the current page URL and a way to
// replace it without navigation, without a new history entry and without
// moving the scroll position.
type Location interface {
	// URL returns the current absolute URL.
	URL() (*url.URL, error)

	// ReplaceURL swaps the visible URL in place.
	ReplaceURL(u *url.URL) error
}

// ReplaceURL rewrites the namespace's parameters on loc: every existing
// namespace parameter is dropped, params are added, and parameters of
// other namespaces are kept byte for byte. Nothing is written when the
// namespace's current parameters already equal params, so repeating a call
// is free.
//
// Namespaces must not be prefixes of each other followed by Separator
// ("calc" and "calc_x"), since parameter names cannot tell them apart.
func ReplaceURL(loc Location, namespace string, params url.Values) error {
	if loc == nil {
		return synerrors.New("S001").WithKey(namespace)
	}
	cur, err := loc.URL()
	if err != nil {
		return synerrors.New("S001").WithKey(namespace).Wrap(err)
	}

	if sameValues(NamespaceParams(cur, namespace), params) {
		return nil
	}
	if err := loc.ReplaceURL(MergeQuery(cur, namespace, params)); err != nil {
		return synerrors.New("S006").WithKey(namespace).Wrap(err)
	}
	return nil
}

// MergeQuery returns a copy of cur whose namespace parameters are replaced
// by params. Other pairs keep their raw text and order, including pairs
// that do not decode; the namespace's parameters follow them, sorted.
func MergeQuery(cur *url.URL, namespace string, params url.Values) *url.URL {
	next := *cur

	var kept []string
	for _, pair := range splitQuery(cur.RawQuery) {
		if name, ok := pairName(pair); ok && isNamespaced(name, namespace) {
			continue
		}
		kept = append(kept, pair)
	}
	if enc := params.Encode(); enc != "" {
		kept = append(kept, enc)
	}
	next.RawQuery = strings.Join(kept, "&")
	next.ForceQuery = false
	return &next
}

// NamespaceParams returns the decoded parameters of u that belong to
// namespace. Pairs whose name or value does not decode are left out.
func NamespaceParams(u *url.URL, namespace string) url.Values {
	out := url.Values{}
	for _, pair := range splitQuery(u.RawQuery) {
		name, ok := pairName(pair)
		if !ok || !isNamespaced(name, namespace) {
			continue
		}
		_, raw, _ := strings.Cut(pair, "=")
		v, err := url.QueryUnescape(raw)
		if err != nil {
			continue
		}
		out[name] = append(out[name], v)
	}
	return out
}

func splitQuery(raw string) []string {
	var pairs []string
	for _, p := range strings.Split(raw, "&") {
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// pairName decodes the name of a raw key=value pair.
func pairName(pair string) (string, bool) {
	raw, _, _ := strings.Cut(pair, "=")
	name, err := url.QueryUnescape(raw)
	return name, err == nil
}

func isNamespaced(name, namespace string) bool {
	return strings.HasPrefix(name, namespace+Separator)
}

func sameValues(a, b url.Values) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}

// ShareableURL builds an absolute URL for state from base's origin and
// path. It does not touch any Location.
func ShareableURL(base *url.URL, state *value.Object, namespace string) string {
	u := url.URL{}
	if base != nil {
		u.Scheme = base.Scheme
		u.Host = base.Host
		u.Path = base.Path
		u.RawPath = base.RawPath
	}
	u.RawQuery = Encode(state, namespace).Encode()
	return u.String()
}

// MemoryLocation is an in-process Location. It records how often the URL
// was replaced, which lets tests observe URL churn.
type MemoryLocation struct {
	mu           sync.Mutex
	current      *url.URL
	replacements []string
}

// NewMemoryLocation creates a location positioned at rawURL.
func NewMemoryLocation(rawURL string) (*MemoryLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &MemoryLocation{current: u}, nil
}

// URL returns a copy of the current URL.
func (m *MemoryLocation) URL() (*url.URL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *m.current
	return &u, nil
}

// ReplaceURL swaps the current URL.
func (m *MemoryLocation) ReplaceURL(u *url.URL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := *u
	m.current = &next
	m.replacements = append(m.replacements, next.String())
	return nil
}

// Navigate moves to rawURL as if the user loaded it. It is not counted
// as a replacement.
func (m *MemoryLocation) Navigate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = u
	return nil
}

// String returns the current URL.
func (m *MemoryLocation) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.String()
}

// Replacements returns every URL written by ReplaceURL, oldest first.
func (m *MemoryLocation) Replacements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.replacements...)
}
