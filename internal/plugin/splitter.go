package plugin

import (
	"fmt"
	"strings"
	"time"
)

const (
	UnitChar = "char"
	UnitWord = "word"
	UnitLine = "line"
)

// splitText splits text into chunks of chunkSize units with chunkOverlap
// units of overlap between consecutive chunks. The last partial chunk is
// kept. Overlap must be smaller than the size or the window never advances.
func splitText(text, unit string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", chunkOverlap)
	}

	var units []string
	switch unit {
	case UnitChar:
		runes := []rune(text)
		units = make([]string, len(runes))
		for i, r := range runes {
			units[i] = string(r)
		}
	case UnitWord:
		units = strings.Fields(text)
	case UnitLine:
		units = strings.Split(text, "\n")
	default:
		return nil, fmt.Errorf("unknown chunk_unit %q", unit)
	}

	if len(units) == 0 {
		return nil, nil
	}

	sep := ""
	switch unit {
	case UnitWord:
		sep = " "
	case UnitLine:
		sep = "\n"
	}

	step := chunkSize - chunkOverlap
	var chunks []string
	for start := 0; start < len(units); start += step {
		end := start + chunkSize
		if end > len(units) {
			end = len(units)
		}
		chunk := strings.Join(units[start:end], sep)
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(units) {
			break
		}
	}
	return chunks, nil
}

// chunkMetadata builds the per-chunk metadata attached at ingestion time.
func chunkMetadata(src Source, strategy, unit string, chunkSize, chunkOverlap, index, count int) map[string]interface{} {
	md := map[string]interface{}{
		"source":              src.Filename,
		"filename":            src.Filename,
		"extension":           fileExtension(src.Filename),
		"chunking_strategy":   strategy,
		"chunk_unit":          unit,
		"chunk_size":          chunkSize,
		"chunk_overlap":       chunkOverlap,
		"chunk_index":         index,
		"chunk_count":         count,
		"ingestion_timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return md
}

func fileExtension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return ""
}
