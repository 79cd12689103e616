package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is the input of every check.
type Page struct {
	// URL is the normalized address of the page.
	URL *url.URL

	// Document is the parsed HTML. Nil when the page could not be fetched.
	Document *goquery.Document

	// Text is the visible text of the body.
	Text string

	// Title is the document title.
	Title string
}

// NewPage builds a Page and extracts its visible text.
func NewPage(u *url.URL, doc *goquery.Document) *Page {
	p := &Page{URL: u, Document: doc}
	if doc != nil {
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
		p.Text = visibleText(doc)
	}
	return p
}

// HasContent reports whether the page document is available.
func (p *Page) HasContent() bool {
	return p != nil && p.Document != nil
}

// visibleText joins the body text nodes with spaces, skipping scripts and
// styles. goquery's Text concatenates adjacent blocks without a separator.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
