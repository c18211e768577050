// Package assets embeds the page shell, the live app template and the
// browser client.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

//go:embed templates/*
var templateFS embed.FS

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser client script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/legocoder.js")
}

// GetClientCSS returns the stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/legocoder.css")
}

// PageShell returns the HTML document that hosts the app.
func PageShell() ([]byte, error) {
	return templateFS.ReadFile("templates/page.html")
}

// AppTemplate returns the live template rendered for every session.
func AppTemplate() ([]byte, error) {
	return templateFS.ReadFile("templates/app.tmpl")
}
