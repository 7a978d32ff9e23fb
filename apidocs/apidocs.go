// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package apidocs serves the human readable API documentation. Endpoint
// descriptions live in an embedded YAML catalog and are rendered as HTML,
// or as JSON when the request carries format=json.
package apidocs

import (
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/wevote/wevote-server/middleware"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Param describes one request parameter
type Param struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
}

// StatusCode describes one value the status field can take
type StatusCode struct {
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description" json:"description"`
}

// Endpoint is one catalog entry
type Endpoint struct {
	Name         string       `yaml:"name" json:"name"`
	Slug         string       `yaml:"slug" json:"slug"`
	Introduction string       `yaml:"introduction" json:"introduction"`
	Verb         string       `yaml:"verb" json:"verb"`
	Required     []Param      `yaml:"required" json:"required_query_parameter_list"`
	Optional     []Param      `yaml:"optional" json:"optional_query_parameter_list"`
	Response     string       `yaml:"response" json:"api_response"`
	Statuses     []StatusCode `yaml:"statuses" json:"potential_status_codes_list"`
}

// URL is the path the endpoint is served at
func (e Endpoint) URL() string {
	return "/apis/v1/" + e.Name + "/"
}

// DocsURL is the path of the endpoint's documentation page
func (e Endpoint) DocsURL() string {
	return "/apis/v1/docs/" + e.Slug + "/"
}

// Catalog holds the parsed endpoint list in catalog order
type Catalog struct {
	Endpoints []Endpoint
	bySlug    map[string]Endpoint
}

// Parse decodes a YAML catalog and rejects entries without a name or slug,
// or with a duplicate slug.
func Parse(data []byte) (*Catalog, error) {
	var endpoints []Endpoint
	if err := yaml.Unmarshal(data, &endpoints); err != nil {
		return nil, fmt.Errorf("failed to parse API catalog: %w", err)
	}

	c := &Catalog{Endpoints: endpoints, bySlug: make(map[string]Endpoint, len(endpoints))}
	for i, e := range endpoints {
		if e.Name == "" || e.Slug == "" {
			return nil, fmt.Errorf("catalog entry %d: name and slug are required", i)
		}
		if _, dup := c.bySlug[e.Slug]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate slug %q", i, e.Slug)
		}
		c.bySlug[e.Slug] = e
	}
	return c, nil
}

// Default returns the embedded catalog. It panics if the embedded file is
// malformed, which a test catches.
func Default() *Catalog {
	c, err := Parse(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds an endpoint by slug
func (c *Catalog) Lookup(slug string) (Endpoint, bool) {
	e, ok := c.bySlug[slug]
	return e, ok
}

var (
	indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>We Vote API</title></head>
<body>
<h1>We Vote API v1</h1>
<p>Every endpoint answers with HTTP 200. Check the <code>success</code> and <code>status</code> fields of the JSON body.</p>
<ul>
{{range .Endpoints}}<li><a href="{{.DocsURL}}">{{.Name}}</a> {{.Introduction}}</li>
{{end}}</ul>
</body></html>
`))

	detailTemplate = template.Must(template.New("detail").Parse(`<!DOCTYPE html>
<html><head><title>{{.Name}} - We Vote API</title></head>
<body>
<p><a href="/apis/v1/docs/">All endpoints</a></p>
<h1>{{.Name}}</h1>
<p>{{.Introduction}}</p>
<p><code>{{.Verb}} {{.URL}}</code></p>
{{if .Required}}<h2>Required parameters</h2>
<dl>{{range .Required}}<dt><code>{{.Name}}</code> ({{.Type}})</dt><dd>{{.Description}}</dd>{{end}}</dl>
{{end}}{{if .Optional}}<h2>Optional parameters</h2>
<dl>{{range .Optional}}<dt><code>{{.Name}}</code> ({{.Type}})</dt><dd>{{.Description}}</dd>{{end}}</dl>
{{end}}<h2>Response</h2>
<pre>{{.Response}}</pre>
{{if .Statuses}}<h2>Status codes</h2>
<dl>{{range .Statuses}}<dt><code>{{.Code}}</code></dt><dd>{{.Description}}</dd>{{end}}</dl>
{{end}}</body></html>
`))
)

// Handler serves the documentation pages
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a documentation handler over the given catalog
func NewHandler(c *Catalog) *Handler {
	return &Handler{catalog: c}
}

// Index handles GET /apis/v1/docs/
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		middleware.JSONResponse(w, http.StatusOK, h.catalog.Endpoints)
		return
	}
	render(w, indexTemplate, h.catalog)
}

// Detail handles GET /apis/v1/docs/{slug}/
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	e, ok := h.catalog.Lookup(r.PathValue("slug"))
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "No documentation for this endpoint")
		return
	}
	if wantsJSON(r) {
		middleware.JSONResponse(w, http.StatusOK, e)
		return
	}
	render(w, detailTemplate, e)
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

func render(w http.ResponseWriter, t *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		slog.Error("failed to render API docs", "template", t.Name(), "error", err)
	}
}
