package plugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	fetchTimeout     = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxFetchBytes    = 10 * 1024 * 1024
)

// URLIngest fetches one or more URLs, strips the pages down to their text
// content, and chunks the result by word windows.
type URLIngest struct {
	httpClient *http.Client
}

func NewURLIngest() *URLIngest {
	return &URLIngest{
		httpClient: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

func (p *URLIngest) Name() string {
	return "url_ingest"
}

func (p *URLIngest) Description() string {
	return "Fetches URLs, extracts visible text from the HTML and chunks it by word windows"
}

func (p *URLIngest) SupportedInputTypes() []string {
	return []string{"url"}
}

func (p *URLIngest) Parameters() ParamSchema {
	return ParamSchema{
		{Name: "chunk_size", Type: ParamTypeInteger, Description: "Number of units per chunk", Default: 300},
		{Name: "chunk_overlap", Type: ParamTypeInteger, Description: "Units shared between consecutive chunks", Default: 50},
		{Name: "chunk_unit", Type: ParamTypeString, Description: "Unit the window counts in", Default: UnitWord, Choices: []string{UnitChar, UnitWord, UnitLine}},
	}
}

func (p *URLIngest) Ingest(ctx context.Context, src Source, params map[string]interface{}) ([]Chunk, error) {
	if len(src.URLs) == 0 {
		return nil, fmt.Errorf("url_ingest requires at least one URL")
	}

	chunkSize := intParam(params, "chunk_size", 300)
	chunkOverlap := intParam(params, "chunk_overlap", 50)
	unit := stringParam(params, "chunk_unit", UnitWord)

	var chunks []Chunk
	for _, rawURL := range src.URLs {
		text, err := p.fetchText(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		pieces, err := splitText(text, unit, chunkSize, chunkOverlap)
		if err != nil {
			return nil, err
		}

		pageSrc := Source{Filename: rawURL, URLs: []string{rawURL}}
		for i, piece := range pieces {
			md := chunkMetadata(pageSrc, p.Name(), unit, chunkSize, chunkOverlap, i, len(pieces))
			md["url"] = rawURL
			chunks = append(chunks, Chunk{Text: piece, Metadata: md})
		}
	}

	// Chunk indices must be unique across the whole ingestion, not per URL.
	for i := range chunks {
		chunks[i].Metadata["chunk_index"] = i
		chunks[i].Metadata["chunk_count"] = len(chunks)
	}
	return chunks, nil
}

func (p *URLIngest) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	extractText(doc, &sb)
	return strings.TrimSpace(sb.String()), nil
}

// extractText walks the parsed tree collecting text nodes, skipping
// script/style/head subtrees.
func extractText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "head":
			return
		}
	}
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
}
