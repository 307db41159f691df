package vision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
)

const searchPage = `<html><head><title>Search</title></head><body>
<form action="/search">
  <input type="hidden" name="csrf" value="x">
  <input type="text" name="q" placeholder="Search the web">
  <button id="go">Search</button>
</form>
<a href="/about">About us</a>
<article><p>Welcome to the search page. Type a query and press enter to see results from across the web.</p></article>
</body></html>`

func TestPageAnalyzer(t *testing.T) {
	pa := NewPageAnalyzer()

	res, err := pa.AnalyzeImage(context.Background(), &Screenshot{URL: "https://example.com", HTML: searchPage})
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if res == nil {
		t.Fatal("Expected an analysis for a page capture")
	}
	if res.UIElementsCount != 3 {
		t.Errorf("Expected 3 interactive elements (hidden input skipped), got %d: %+v", res.UIElementsCount, res.Elements)
	}
	if res.Title != "Search" {
		t.Errorf("Expected title Search, got %q", res.Title)
	}

	var sawQuery, sawButton bool
	for _, e := range res.Elements {
		if e.Selector == `input[name="q"]` && e.Text == "Search the web" {
			sawQuery = true
		}
		if e.Type == "button" && e.Selector == "#go" {
			sawButton = true
		}
	}
	if !sawQuery || !sawButton {
		t.Errorf("Missing expected elements: %+v", res.Elements)
	}

	if !strings.Contains(res.Summary(), "Interactive elements: 3") {
		t.Errorf("Unexpected summary: %s", res.Summary())
	}
}

func TestPageAnalyzer_DesktopCaptureHasNoOpinion(t *testing.T) {
	res, err := NewPageAnalyzer().AnalyzeImage(context.Background(), &Screenshot{PNG: []byte{1, 2, 3}})
	if err != nil || res != nil {
		t.Errorf("Expected nil, nil for a capture without HTML; got %v, %v", res, err)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes and straddles the limit
	got := truncate(strings.Repeat("a", 9)+"é and more", 10)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("a", 9)+"\n... (truncated)") {
		t.Errorf("Unexpected truncation %q", got)
	}
	if truncate("héllo", 10) != "héllo" {
		t.Error("short text should pass through")
	}

	long := strings.Repeat("日本語", maxPageText)
	if got := truncate(long, maxPageText); !utf8.ValidString(got) || len(got) > maxPageText+len("\n... (truncated)") {
		t.Errorf("Unexpected truncation of %d bytes to %d", len(long), len(got))
	}
}

type fakeModel struct {
	reply string
	err   error
	seen  []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.seen = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.reply, f.err
}

func TestLLMAnalyzer(t *testing.T) {
	model := &fakeModel{reply: "```json\n{\"elements\":[{\"type\":\"button\",\"text\":\"OK\"}],\"current_state\":\"dialog open\",\"confidence\":0.9}\n```"}
	a := NewLLMAnalyzer(model, nil)

	res, err := a.AnalyzeImage(context.Background(), &Screenshot{PNG: []byte{0x89, 'P', 'N', 'G'}})
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if res.Source != "llm" || res.UIElementsCount != 1 || res.CurrentState != "dialog open" {
		t.Errorf("Unexpected analysis: %+v", res)
	}
	if len(model.seen) != 1 || len(model.seen[0].Parts) != 2 {
		t.Fatalf("Expected one message with image and prompt parts, got %+v", model.seen)
	}
	if _, ok := model.seen[0].Parts[0].(llms.BinaryContent); !ok {
		t.Errorf("Expected first part to be the image, got %T", model.seen[0].Parts[0])
	}
}

func TestChain_FallsThrough(t *testing.T) {
	broken := NewLLMAnalyzer(&fakeModel{err: errors.New("rate limited")}, nil)
	chain := Chain{broken, NewPageAnalyzer()}

	res, err := chain.AnalyzeImage(context.Background(), &Screenshot{PNG: []byte{1}, HTML: searchPage})
	if err != nil || res == nil || res.Source != "page" {
		t.Fatalf("Expected page analysis after LLM failure, got %v, %v", res, err)
	}

	res, err = chain.AnalyzeImage(context.Background(), &Screenshot{PNG: []byte{1}})
	if res != nil {
		t.Errorf("Expected no analysis, got %+v", res)
	}
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Expected the LLM error to be reported, got %v", err)
	}
}
