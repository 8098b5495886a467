package server

import (
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed routes.go
var routesSource string

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
<p>Decisions are made by the <code>{{.Strategy}}</code> strategy.</p>
<h2>Callbacks</h2>
<p>Every callback except <code>/name</code> requires the <code>X-Game-Id</code> header.</p>
<h2>Routing</h2>
<pre>{{.Source}}</pre>
</body>
</html>
`))

// handleIndex documents the service by echoing its routing code.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, struct {
		Name     string
		Strategy string
		Source   string
	}{s.name, s.strategy.Name(), routesSource})
	if err != nil {
		s.logger.Error("Failed to render index", "error", err)
	}
}
