// Package palette defines the result contract consumed by the command
// palette and the HTML-escaping highlighter it renders matches with.
package palette

import (
	"errors"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
)

// Category groups palette results. The set is fixed.
type Category string

const (
	CategoryCalculator Category = "calculator"
	CategoryReference  Category = "reference"
	CategoryTool       Category = "tool"
	CategoryPage       Category = "page"
	CategoryAction     Category = "action"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryCalculator,
	CategoryReference,
	CategoryTool,
	CategoryPage,
	CategoryAction,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ActionType is what selecting a result does.
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionCopy     ActionType = "copy"
)

// Action is either a navigation to Target or a copy of Payload.
type Action struct {
	Type    ActionType `json:"type"`
	Target  string     `json:"target,omitempty"`
	Payload string     `json:"payload,omitempty"`
}

// Navigate returns a navigate action.
func Navigate(target string) Action {
	return Action{Type: ActionNavigate, Target: target}
}

// Copy returns a copy action.
func Copy(payload string) Action {
	return Action{Type: ActionCopy, Payload: payload}
}

// Result is a single palette entry.
type Result struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Action      Action   `json:"action"`
}

var (
	ErrMissingID       = errors.New("palette: result has no id")
	ErrMissingTitle    = errors.New("palette: result has no title")
	ErrInvalidCategory = errors.New("palette: unknown category")
	ErrInvalidAction   = errors.New("palette: invalid action")
)

// Validate checks r against the result contract.
func (r Result) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if r.Title == "" {
		return fmt.Errorf("%w (id %s)", ErrMissingTitle, r.ID)
	}
	if !r.Category.Valid() {
		return fmt.Errorf("%w %q (id %s)", ErrInvalidCategory, r.Category, r.ID)
	}
	switch r.Action.Type {
	case ActionNavigate:
		if r.Action.Target == "" || r.Action.Payload != "" {
			return fmt.Errorf("%w: navigate needs a target and no payload (id %s)", ErrInvalidAction, r.ID)
		}
	case ActionCopy:
		if r.Action.Target != "" {
			return fmt.Errorf("%w: copy takes a payload, not a target (id %s)", ErrInvalidAction, r.ID)
		}
	default:
		return fmt.Errorf("%w: type %q (id %s)", ErrInvalidAction, r.Action.Type, r.ID)
	}
	return nil
}

// Highlighted is a result with its title and description rendered for
// display.
type Highlighted struct {
	Result
	TitleHTML       template.HTML `json:"titleHtml"`
	DescriptionHTML template.HTML `json:"descriptionHtml,omitempty"`
}

// HighlightResult renders r's title and description against query.
func HighlightResult(r Result, query string) Highlighted {
	return Highlighted{
		Result:          r,
		TitleHTML:       Highlight(r.Title, query),
		DescriptionHTML: Highlight(r.Description, query),
	}
}

// Highlight escapes text for HTML and wraps every case-insensitive match of
// query in <mark>. Both the matched and the surrounding text are escaped.
func Highlight(text, query string) template.HTML {
	query = strings.TrimSpace(query)
	if query == "" || text == "" {
		return template.HTML(html.EscapeString(text))
	}

	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:m[0]]))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(text[m[0]:m[1]]))
		b.WriteString("</mark>")
		last = m[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return template.HTML(b.String())
}
