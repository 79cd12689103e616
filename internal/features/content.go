package features

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContentFeatureCount is the number of features returned by ExtractContent.
const ContentFeatureCount = 11

// ContentFeatureNames names the content features in vector order.
var ContentFeatureNames = [ContentFeatureCount]string{
	"external_images",
	"external_anchors",
	"external_link_tags",
	"empty_form_action",
	"mailto_anchor",
	"mouseover_anchor",
	"right_click_disabled",
	"popup_window",
	"iframe",
	"many_anchors",
	"many_scripts",
}

var (
	rightClickPattern = regexp.MustCompile(`(?i)(oncontextmenu|event\.button\s*===?\s*2|contextmenu['"]\s*,)`)
	popupPattern      = regexp.MustCompile(`(?i)window\.open\s*\(`)
)

// ParseHTML parses an HTML document.
func ParseHTML(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// ExtractContent returns the content features of doc.
// Each feature is 1 when the structure is present and -1 otherwise.
func ExtractContent(doc *goquery.Document) []float64 {
	present := func(selector string) float64 {
		return boolFeature(doc.Find(selector).Length() > 0)
	}

	scripts := inlineScripts(doc)

	return []float64{
		present("img[src*='http']"),
		present("a[href*='http']"),
		present("link[href*='http']"),
		present("form[action=''], form:not([action])"),
		present("a[href^='mailto']"),
		present("a[onmouseover]"),
		boolFeature(doc.Find("[oncontextmenu]").Length() > 0 || rightClickPattern.MatchString(scripts)),
		boolFeature(popupPattern.MatchString(scripts)),
		present("iframe"),
		boolFeature(doc.Find("a").Length() > 5),
		boolFeature(doc.Find("script").Length() > 5),
	}
}

func inlineScripts(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); ok {
			return
		}
		b.WriteString(s.Text())
		b.WriteByte('\n')
	})
	return b.String()
}
