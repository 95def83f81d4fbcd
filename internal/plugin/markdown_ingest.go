package plugin

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// MarkdownIngest splits markdown files on headings, keeping each section
// together, then caps oversized sections with the sliding-window splitter.
type MarkdownIngest struct{}

func NewMarkdownIngest() *MarkdownIngest {
	return &MarkdownIngest{}
}

func (p *MarkdownIngest) Name() string {
	return "markdown_ingest"
}

func (p *MarkdownIngest) Description() string {
	return "Splits markdown on headings, capping oversized sections by character window"
}

func (p *MarkdownIngest) SupportedInputTypes() []string {
	return []string{"md", "markdown", "text/markdown"}
}

func (p *MarkdownIngest) Parameters() ParamSchema {
	return ParamSchema{
		{Name: "chunk_size", Type: ParamTypeInteger, Description: "Maximum characters per chunk", Default: 2000},
		{Name: "chunk_overlap", Type: ParamTypeInteger, Description: "Characters shared between split sections", Default: 200},
		{Name: "max_heading_level", Type: ParamTypeInteger, Description: "Deepest heading level that starts a new section", Default: 3},
	}
}

func (p *MarkdownIngest) Ingest(ctx context.Context, src Source, params map[string]interface{}) ([]Chunk, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Path, err)
	}

	chunkSize := intParam(params, "chunk_size", 2000)
	chunkOverlap := intParam(params, "chunk_overlap", 200)
	maxLevel := intParam(params, "max_heading_level", 3)

	sections := splitSections(string(data), maxLevel)

	var pieces []string
	for _, section := range sections {
		if len([]rune(section)) <= chunkSize {
			pieces = append(pieces, section)
			continue
		}
		capped, err := splitText(section, UnitChar, chunkSize, chunkOverlap)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, capped...)
	}

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			Text:     piece,
			Metadata: chunkMetadata(src, p.Name(), UnitChar, chunkSize, chunkOverlap, i, len(pieces)),
		}
	}
	return chunks, nil
}

// splitSections groups lines into sections opened by headings up to
// maxLevel. A heading deeper than maxLevel stays inside its parent section.
func splitSections(text string, maxLevel int) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string
	flush := func() {
		section := strings.TrimSpace(strings.Join(current, "\n"))
		if section != "" {
			sections = append(sections, section)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if level := headingLevel(line); level > 0 && level <= maxLevel {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return sections
}

func headingLevel(line string) int {
	trimmed := strings.TrimLeft(line, "#")
	level := len(line) - len(trimmed)
	if level == 0 || level > 6 {
		return 0
	}
	if !strings.HasPrefix(trimmed, " ") {
		return 0
	}
	return level
}
