package api

import "net/http"

type routeResponse struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Href string `json:"href"`
	Lazy bool   `json:"lazy"`
}

func (s *Server) handleListRoutes(w http.ResponseWriter, _ *http.Request) {
	rs := s.table.Routes()
	out := make([]routeResponse, 0, len(rs))
	for _, r := range rs {
		href, _ := s.table.Href(r.Name)
		out = append(out, routeResponse{Name: r.Name, Path: r.Path, Href: href, Lazy: r.Lazy()})
	}
	writeJSON(w, http.StatusOK, out)
}
