package vision

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageText = 4000

// PageAnalyzer describes a browser capture from its DOM. It returns nil for
// captures that carry no HTML (desktop screenshots).
type PageAnalyzer struct {
	policy *bluemonday.Policy
}

func NewPageAnalyzer() *PageAnalyzer {
	return &PageAnalyzer{policy: bluemonday.StrictPolicy()}
}

func (p *PageAnalyzer) AnalyzeImage(ctx context.Context, shot *Screenshot) (*Analysis, error) {
	if shot == nil || strings.TrimSpace(shot.HTML) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(shot.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	elements := collectElements(doc)

	title := shot.Title
	var text string
	pageURL, _ := url.Parse(shot.URL)
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	// readability fails on pages without an article body; elements are still useful
	if article, err := readability.FromReader(strings.NewReader(shot.HTML), pageURL); err == nil {
		text = strings.TrimSpace(p.policy.Sanitize(article.TextContent))
		if title == "" {
			title = article.Title
		}
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	text = truncate(text, maxPageText)

	state := fmt.Sprintf("Browser page %q with %d interactive elements", title, len(elements))
	return &Analysis{
		Source:          "page",
		URL:             shot.URL,
		Title:           title,
		CurrentState:    state,
		Text:            text,
		Elements:        elements,
		Confidence:      1,
		HasText:         text != "",
		UIElementsCount: len(elements),
		AnalyzedAt:      time.Now(),
	}, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "\n... (truncated)"
}

func collectElements(doc *goquery.Document) []Element {
	elements := []Element{}
	doc.Find("button, input, textarea, select, a[href]").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		inputType, _ := s.Attr("type")
		if tag == "input" && inputType == "hidden" {
			return
		}

		el := Element{Type: elementType(tag, inputType), Selector: selectorFor(s, tag)}
		el.Text = strings.Join(strings.Fields(s.Text()), " ")
		if el.Text == "" {
			for _, attr := range []string{"aria-label", "placeholder", "value", "title"} {
				if v, ok := s.Attr(attr); ok && v != "" {
					el.Text = v
					break
				}
			}
		}
		if href, ok := s.Attr("href"); ok {
			el.Purpose = href
		}
		elements = append(elements, el)
	})
	return elements
}

func elementType(tag, inputType string) string {
	switch tag {
	case "a":
		return "link"
	case "button":
		return "button"
	case "input":
		if inputType == "submit" || inputType == "button" {
			return "button"
		}
		return "input"
	default:
		return "input"
	}
}

func selectorFor(s *goquery.Selection, tag string) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return fmt.Sprintf("%s[name=%q]", tag, name)
	}
	return ""
}
