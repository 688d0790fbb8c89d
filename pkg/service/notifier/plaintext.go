package notifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/m-mizutani/goerr/v2"
)

// toPlainText renders the visible text of an HTML mail body. Images and
// styling are dropped; list items become "* " lines.
func toPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse HTML body")
	}

	doc.Find("head, style, script, img").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("* ")
		s.AppendHtml("\n")
	})
	doc.Find("p, div, h1, h2, h3, h4, h5, h6, tr, ul, ol, table").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	blank := true
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}

	return strings.TrimSpace(strings.Join(lines, "\n")) + "\n", nil
}
