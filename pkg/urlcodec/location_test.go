package urlcodec

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	synerrors "github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/value"
)

type brokenLocation struct{}

func (brokenLocation) URL() (*url.URL, error) { return nil, errors.New("no window") }

func (brokenLocation) ReplaceURL(*url.URL) error { return nil }

func TestReplaceURL(t *testing.T) {
	loc, err := NewMemoryLocation("https://example.com/tools/thread?b_diameter=9&calc_old=1#top")
	if err != nil {
		t.Fatal(err)
	}

	params := Encode(value.NewObject().Set("diameter", value.Number(6)), "calc")
	if err := ReplaceURL(loc, "calc", params); err != nil {
		t.Fatalf("ReplaceURL failed: %v", err)
	}

	u, _ := loc.URL()
	q := u.Query()
	if q.Get("calc_diameter") != "6" {
		t.Errorf("calc_diameter = %q, want 6", q.Get("calc_diameter"))
	}
	if _, ok := q["calc_old"]; ok {
		t.Error("stale namespace parameter should be removed")
	}
	if q.Get("b_diameter") != "9" {
		t.Error("other namespace parameter should be preserved")
	}
	if u.Path != "/tools/thread" || u.Fragment != "top" {
		t.Errorf("path or fragment changed: %s", u)
	}
}

func TestReplaceURLIdempotent(t *testing.T) {
	loc, _ := NewMemoryLocation("https://example.com/calc")
	params := Encode(value.NewObject().Set("x", value.Number(1)), "ns")

	for i := 0; i < 3; i++ {
		if err := ReplaceURL(loc, "ns", params); err != nil {
			t.Fatalf("ReplaceURL failed: %v", err)
		}
	}
	if got := len(loc.Replacements()); got != 1 {
		t.Errorf("replacements = %d, want 1", got)
	}
}

func TestReplaceURLUnavailable(t *testing.T) {
	if err := ReplaceURL(nil, "ns", nil); !synerrors.HasCode(err, "S001") {
		t.Errorf("nil location error = %v, want S001", err)
	}
	if err := ReplaceURL(brokenLocation{}, "ns", nil); !synerrors.HasCode(err, "S001") {
		t.Errorf("broken location error = %v, want S001", err)
	}
}

func TestShareableURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/calc/thread?unrelated=1#frag")
	state := value.NewObject().
		Set("diameter", value.Number(8)).
		Set("label", value.String(""))

	got := ShareableURL(base, state, "thread")

	if !strings.HasPrefix(got, "https://example.com/calc/thread?") {
		t.Errorf("ShareableURL = %q, want origin and path kept", got)
	}
	if strings.Contains(got, "unrelated") || strings.Contains(got, "frag") {
		t.Errorf("ShareableURL = %q, should only carry encoded state", got)
	}
	if strings.Contains(got, "thread_label") {
		t.Errorf("ShareableURL = %q, empty field should be absent", got)
	}
	if !strings.Contains(got, "thread_diameter=8") {
		t.Errorf("ShareableURL = %q, missing diameter", got)
	}
}

func TestMemoryLocationNavigate(t *testing.T) {
	loc, _ := NewMemoryLocation("https://example.com/")
	if err := loc.Navigate("https://example.com/calc?ns_x=1"); err != nil {
		t.Fatal(err)
	}
	if loc.String() != "https://example.com/calc?ns_x=1" {
		t.Errorf("String() = %q", loc.String())
	}
	if len(loc.Replacements()) != 0 {
		t.Error("Navigate should not count as a replacement")
	}
}

func TestReplaceURLKeepsForeignPairsRaw(t *testing.T) {
	loc, err := NewMemoryLocation("https://example.com/p?z=1&a=2&bad=%zz&ns_x=1#top")
	if err != nil {
		t.Fatal(err)
	}

	if err := ReplaceURL(loc, "ns", url.Values{"ns_x": {"2"}}); err != nil {
		t.Fatalf("ReplaceURL failed: %v", err)
	}
	if got, want := loc.String(), "https://example.com/p?z=1&a=2&bad=%zz&ns_x=2#top"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestReplaceURLUnsortedQueryIsUnchanged(t *testing.T) {
	loc, _ := NewMemoryLocation("https://example.com/p?ns_y=b&z=1&ns_x=1")
	params := Encode(value.NewObject().Set("x", value.Number(1)).Set("y", value.String("b")), "ns")

	if err := ReplaceURL(loc, "ns", params); err != nil {
		t.Fatalf("ReplaceURL failed: %v", err)
	}
	if n := len(loc.Replacements()); n != 0 {
		t.Errorf("replacements = %d, want 0 (%v)", n, loc.Replacements())
	}
}

func TestReplaceURLClearsNamespace(t *testing.T) {
	loc, _ := NewMemoryLocation("https://example.com/p?ns_x=1&keep=1")

	if err := ReplaceURL(loc, "ns", nil); err != nil {
		t.Fatalf("ReplaceURL failed: %v", err)
	}
	if got := loc.String(); got != "https://example.com/p?keep=1" {
		t.Errorf("URL = %q", got)
	}
	if err := ReplaceURL(loc, "ns", nil); err != nil {
		t.Fatal(err)
	}
	if n := len(loc.Replacements()); n != 1 {
		t.Errorf("replacements = %d, want 1", n)
	}
}

func TestNamespaceParams(t *testing.T) {
	u, _ := url.Parse("https://example.com/?ns_a=1&ns_b=%zz&other_a=2&ns_a=3&ns%5Fc=x")
	got := NamespaceParams(u, "ns")

	if v := got["ns_a"]; len(v) != 2 || v[0] != "1" || v[1] != "3" {
		t.Errorf("ns_a = %v", v)
	}
	if got.Has("ns_b") {
		t.Error("undecodable value should be left out")
	}
	if got.Has("other_a") {
		t.Error("other namespace should be left out")
	}
	if got.Get("ns_c") != "x" {
		t.Errorf("escaped name should decode, got %v", got)
	}
}
