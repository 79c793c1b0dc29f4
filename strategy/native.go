package strategy

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/riptide/core/rerrors"
)

// NativeExtractor walks the HTML token tree directly with
// golang.org/x/net/html (no goquery dependency), applying structural
// heuristics: the text of every non-empty <p> outside script, style
// and noscript is joined, in document order, as the article body, and
// the first <title> or <h1> supplies the title.
type NativeExtractor struct {
	name string
}

// NewNativeExtractor builds a NativeExtractor named name.
func NewNativeExtractor(name string) *NativeExtractor {
	return &NativeExtractor{name: name}
}

func (e *NativeExtractor) Name() string {
	return e.name
}

func (e *NativeExtractor) Extract(rawHTML []byte, url string) (Document, error) {
	root, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return Document{}, rerrors.New("strategy.NativeExtractor.Extract", rerrors.KindInvalidRequest, url, err)
	}

	var title string
	var paragraphs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" {
					title = strings.TrimSpace(textOf(n))
				}
			case "h1":
				if title == "" {
					title = strings.TrimSpace(textOf(n))
				}
			case "p":
				if t := strings.TrimSpace(textOf(n)); t != "" {
					paragraphs = append(paragraphs, t)
				}
			case "script", "style", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return Document{
		URL:          url,
		Title:        title,
		Text:         strings.Join(paragraphs, "\n\n"),
		ContentType:  "text/html",
		ExtractedAt:  time.Now().UTC(),
		StrategyUsed: e.name,
		Metadata:     map[string]string{"paragraph_count": strconv.Itoa(len(paragraphs))},
	}, nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
