package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const reportCSS = `body{font-family:-apple-system,'Segoe UI',Roboto,sans-serif;color:#1c1917;max-width:860px;margin:0 auto;padding:1.5rem;line-height:1.55;}` +
	`h1{border-bottom:2px solid #e7e5e4;padding-bottom:0.4rem;}` +
	`table{width:100%;border-collapse:collapse;font-size:0.9rem;}` +
	`th,td{border:1px solid #a8a29e;padding:0.35rem 0.5rem;text-align:left;vertical-align:top;}` +
	`thead th{background:#f1f5f9;font-weight:700;}` +
	`blockquote{border-left:4px solid #fcd34d;background:#fffbeb;margin:0;padding:0.5rem 0.8rem;}` +
	`@media print{@page{size:auto;margin:12mm;}body{padding:0;}}`

// HTML converts report markdown into a standalone HTML document.
func HTML(title, markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		content.String() +
		"</body></html>", nil
}
