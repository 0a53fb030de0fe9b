package api

import (
	"embed"
	"html/template"
	"net/url"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"pathEscape": url.PathEscape,
		"add": func(a, b int) int {
			return a + b
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
