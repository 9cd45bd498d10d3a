package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the http(s) links found in an HTML fragment, in
// document order, de-duplicated. Relative references are resolved against
// base when one is given. Entity-escaped hrefs are unescaped by the parser.
// Malformed markup yields whatever anchors could still be parsed;
// extraction never fails a story.
func ExtractLinks(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			parsed = base.ResolveReference(parsed)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		abs := parsed.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
