package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

// StripHTML turns markup into a single line of text: tags become spaces,
// script/style content is dropped and whitespace runs collapse.
func StripHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseWhitespace(html)
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	var sb strings.Builder
	for _, node := range doc.Find("body").Nodes {
		collectText(node, &sb)
	}

	return collapseWhitespace(sb.String())
}

// collectText walks the tree writing a space at each element boundary,
// so "<p>a</p><p>b</p>" reads "a b" rather than "ab".
func collectText(node *xhtml.Node, sb *strings.Builder) {
	switch node.Type {
	case xhtml.TextNode:
		sb.WriteString(node.Data)
	case xhtml.ElementNode, xhtml.DocumentNode:
		sb.WriteString(" ")
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collectText(child, sb)
		}
		sb.WriteString(" ")
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LooksLikeMarkup reports whether a text body is really HTML.
func LooksLikeMarkup(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<") || strings.Contains(strings.ToLower(trimmed), "</html>")
}

// DerivePlainText picks the body to store as text: the given text unless it is
// empty or markup, in which case the stripped HTML (or stripped text).
func DerivePlainText(text, html string) string {
	switch {
	case strings.TrimSpace(text) == "":
		return StripHTML(html)
	case LooksLikeMarkup(text):
		return StripHTML(text)
	default:
		return text
	}
}
