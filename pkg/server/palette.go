package server

import (
	"net/http"
	"strings"

	"github.com/vango-dev/statesync/pkg/palette"
	"github.com/vango-dev/statesync/pkg/urlcodec"
)

// paletteResults lists the palette entries for def: a page entry that
// navigates to the consumer and an action that copies its default link.
func (s *Server) paletteResults(r *http.Request, def Definition) []palette.Result {
	base := s.baseURL(r, def)
	return []palette.Result{
		{
			ID:          def.Name,
			Category:    palette.CategoryTool,
			Title:       def.Title,
			Description: def.Path,
			Action:      palette.Navigate(def.Path),
		},
		{
			ID:          def.Name + ":copy-link",
			Category:    palette.CategoryAction,
			Title:       "Copy link: " + def.Title,
			Description: "Shareable URL with default values",
			Action:      palette.Copy(urlcodec.ShareableURL(base, def.Template, def.Namespace)),
		},
	}
}

// handlePalette answers GET /api/palette?q= with the matching entries,
// highlighted for display. An empty query matches everything.
func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	needle := strings.ToLower(query)

	out := []palette.Highlighted{}
	for _, def := range s.Definitions() {
		for _, res := range s.paletteResults(r, def) {
			if err := res.Validate(); err != nil {
				s.logger.Warn("palette result rejected", "id", res.ID, "error", err)
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(res.Title), needle) &&
				!strings.Contains(strings.ToLower(res.Description), needle) {
				continue
			}
			out = append(out, palette.HighlightResult(res, query))
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
