// Package transform builds the final entry body from a record's fields:
// equation markup is rewritten to math delimiters, embedded image
// references are pointed at their uploaded attachments, and the field
// contributions are joined into one HTML string.
package transform

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mrlokans/eln-import/internal/record"
)

const fieldSeparator = "<br />"

// Equation markup produced by the source editor: a div carrying both
// classes, with the expression in its data-equation attribute.
const (
	equationClass       = "rsEquation"
	equationEditorClass = "mceNonEditable"
	equationSourceAttr  = "data-equation"
)

// ComposeBody renders the body for one record. Fields contribute
// "<Name>: <Data>" lines in document order, empty fields contribute
// nothing, and the transformed HTML of the body field comes last.
// uploads maps original image filenames to server-assigned storage
// names.
func ComposeBody(fields []record.Field, uploads map[string]string) (string, error) {
	var parts []string
	var bodyHTML string

	for _, field := range fields {
		if field.Name == record.BodyFieldName {
			if field.Data == "" {
				continue
			}
			transformed, err := TransformHTML(field.Data, uploads)
			if err != nil {
				return "", err
			}
			bodyHTML = transformed
			continue
		}
		if field.Data == "" {
			continue
		}
		parts = append(parts, field.Name+": "+field.Data)
	}

	if bodyHTML != "" {
		parts = append(parts, bodyHTML)
	}

	return strings.Join(parts, fieldSeparator), nil
}

// TransformHTML rewrites the body field's HTML: equation divs become
// dollar-delimited plain text, and img sources naming an uploaded
// attachment are pointed at its download URL. Unmatched images are left
// alone. Malformed HTML is tolerated; the parser never fails on
// fragments.
func TransformHTML(src string, uploads map[string]string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return "", err
	}

	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	replaceEquations(root)
	rewriteImages(root, uploads)

	var sb strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// replaceEquations swaps each equation div for a text node holding the
// expression wrapped in single-dollar delimiters.
func replaceEquations(root *html.Node) {
	for _, div := range findAll(root, isEquationDiv) {
		expr := "$" + strings.TrimSpace(attr(div, equationSourceAttr)) + "$"
		text := &html.Node{Type: html.TextNode, Data: expr}
		div.Parent.InsertBefore(text, div)
		div.Parent.RemoveChild(div)
	}
}

// rewriteImages points img tags at the download URL of their uploaded
// attachment, matched by filename.
func rewriteImages(root *html.Node, uploads map[string]string) {
	for _, img := range findAll(root, func(n *html.Node) bool {
		return n.DataAtom == atom.Img
	}) {
		src := attr(img, "src")
		name := src[strings.LastIndex(src, "/")+1:]
		longName, ok := uploads[name]
		if !ok {
			continue
		}
		setAttr(img, "src", DownloadURL(longName, name))
	}
}

// DownloadURL builds the application download link for an uploaded
// attachment.
func DownloadURL(longName, name string) string {
	return "app/download.php?f=" + longName + "&name=" + name + "&storage=1"
}

func isEquationDiv(n *html.Node) bool {
	return n.DataAtom == atom.Div && hasClass(n, equationClass) && hasClass(n, equationEditorClass)
}

// findAll returns all element nodes under root matching the predicate,
// in document order. Collected before mutation so replacement does not
// disturb the walk.
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
