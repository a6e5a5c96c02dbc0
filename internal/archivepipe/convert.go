package archivepipe

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"docmind/internal/apperr"
)

var h1Re = regexp.MustCompile(`(?m)^#\s+\S`)

// ConvertHTML converts an HTML document's content to normalized Markdown,
// prefixing a title heading when the source has no leading H1. Grounded on
// the teacher's internal/tools/web/fetch.go FetchMarkdown/hasLeadingH1
// conversion path, stripped of the HTTP-fetch and readability-extraction
// concerns since archive members are read from disk, already whole
// documents.
func ConvertHTML(html string, title string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", apperr.New(apperr.InvalidInput, "convert html to markdown", err)
	}
	md = strings.TrimSpace(md)
	if !hasLeadingH1(md) && title != "" {
		md = "# " + title + "\n\n" + md
	}
	return md, nil
}

// ConvertHTMLWithDomain is like ConvertHTML but resolves relative links and
// images against base, for archives that retain cross-references between
// pages.
func ConvertHTMLWithDomain(html, title, base string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html, converter.WithDomain(base))
	if err != nil {
		return "", apperr.New(apperr.InvalidInput, "convert html to markdown", err)
	}
	md = strings.TrimSpace(md)
	if !hasLeadingH1(md) && title != "" {
		md = "# " + title + "\n\n" + md
	}
	return md, nil
}

func hasLeadingH1(md string) bool {
	trimmed := strings.TrimLeft(md, "\n\r\t ")
	return h1Re.MatchString(trimmed[:min(len(trimmed), 200)])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
