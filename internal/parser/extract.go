package parser

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// NoTitle is the sentinel title used when a document has no usable <title>.
const NoTitle = "No Title"

// noiseElements are elements whose subtree contributes no visible text.
// They are skipped entirely during text extraction. The <head> element is
// included; the title is captured separately before the text pass.
var noiseElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"meta":     true,
	"link":     true,
}

// blankRuns matches runs of three or more consecutive newlines.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// Content is the structured result of parsing one page.
type Content struct {
	// Title is the trimmed document title, or NoTitle when absent.
	Title string

	// Text is the visible text of the page, newline-joined with runs of
	// blank lines collapsed.
	Text string

	// Fingerprint is the lowercase SHA-256 hex digest of Text.
	Fingerprint string

	// Links is the deduplicated set of valid onion URLs discovered on the
	// page, resolved against the page address with fragments stripped.
	// Sorted for deterministic iteration; order carries no meaning.
	Links []string
}

// Extract parses raw HTML fetched from addr and returns its structured
// content. Extraction is deterministic: identical (content, addr) inputs
// always yield identical output, including the fingerprint.
func Extract(content []byte, addr string) (*Content, error) {
	base, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	c := &Content{Title: NoTitle}
	if title := findTitle(doc); title != "" {
		c.Title = title
	}

	var textParts []string
	linkSet := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "a" {
				if link := resolveLink(base, attrValue(n, "href")); link != "" {
					linkSet[link] = struct{}{}
				}
			}
			if noiseElements[n.Data] {
				// The skipped subtree may still carry anchors
				// (menus inside <noscript> are common), so only
				// text collection stops here.
				collectLinks(n, base, linkSet)
				return
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				textParts = append(textParts, t)
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	c.Text = blankRuns.ReplaceAllString(strings.Join(textParts, "\n"), "\n\n")
	c.Fingerprint = fingerprint(c.Text)

	c.Links = make([]string, 0, len(linkSet))
	for link := range linkSet {
		c.Links = append(c.Links, link)
	}
	sort.Strings(c.Links)

	return c, nil
}

// fingerprint returns the lowercase SHA-256 hex digest of text.
// Invalid UTF-8 sequences are replaced with the Unicode replacement
// character first, so byte-corrupted pages still hash deterministically.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.ToValidUTF8(text, "�")))
	return hex.EncodeToString(sum[:])
}

// collectLinks harvests anchor hrefs from a subtree that the text walk skips.
func collectLinks(n *html.Node, base *url.URL, linkSet map[string]struct{}) {
	if n.Type == html.ElementNode && n.Data == "a" {
		if link := resolveLink(base, attrValue(n, "href")); link != "" {
			linkSet[link] = struct{}{}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectLinks(child, base, linkSet)
	}
}

// resolveLink resolves href against base and returns it when it is a
// crawlable onion URL. Fragment-only, javascript:, and mailto: references
// are discarded, and any fragment is stripped from the result.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""

	link := resolved.String()
	if !IsValidAddress(link) {
		return ""
	}
	return link
}

// attrValue retrieves an attribute value from an HTML node.
func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// findTitle returns the trimmed text of the first <title> element, or an
// empty string when the document has none.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var sb strings.Builder
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				sb.WriteString(child.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if title := findTitle(child); title != "" {
			return title
		}
	}
	return ""
}
