package plugin

import (
	"context"
	"fmt"
	"os"
)

// SimpleIngest chunks plain text files by a fixed-size sliding window.
type SimpleIngest struct{}

func NewSimpleIngest() *SimpleIngest {
	return &SimpleIngest{}
}

func (p *SimpleIngest) Name() string {
	return "simple_ingest"
}

func (p *SimpleIngest) Description() string {
	return "Chunks plain text files by character, word or line windows with configurable overlap"
}

func (p *SimpleIngest) SupportedInputTypes() []string {
	return []string{"txt", "md", "text/plain"}
}

func (p *SimpleIngest) Parameters() ParamSchema {
	return ParamSchema{
		{Name: "chunk_size", Type: ParamTypeInteger, Description: "Number of units per chunk", Default: 1000},
		{Name: "chunk_overlap", Type: ParamTypeInteger, Description: "Units shared between consecutive chunks", Default: 200},
		{Name: "chunk_unit", Type: ParamTypeString, Description: "Unit the window counts in", Default: UnitChar, Choices: []string{UnitChar, UnitWord, UnitLine}},
	}
}

func (p *SimpleIngest) Ingest(ctx context.Context, src Source, params map[string]interface{}) ([]Chunk, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Path, err)
	}

	chunkSize := intParam(params, "chunk_size", 1000)
	chunkOverlap := intParam(params, "chunk_overlap", 200)
	unit := stringParam(params, "chunk_unit", UnitChar)

	pieces, err := splitText(string(data), unit, chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			Text:     piece,
			Metadata: chunkMetadata(src, p.Name(), unit, chunkSize, chunkOverlap, i, len(pieces)),
		}
	}
	return chunks, nil
}
