// Package ingest turns the plain-text law corpus into the vector database the
// gateway retrieves from.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"trafficlaw-gateway/internal/domain/entity"
	"trafficlaw-gateway/internal/domain/repository"

	"go.uber.org/zap"
)

const sectionDelimiter = "==="

var errEmptyEmbedding = errors.New("empty embedding")

type Section struct {
	Title   string
	Content string
}

// Split cuts the corpus on "===" lines. Sections are trimmed, blanks are
// dropped, and the first line of each becomes its title.
func Split(text string) []Section {
	var out []Section
	for _, part := range strings.Split(text, sectionDelimiter) {
		content := strings.TrimSpace(part)
		if content == "" {
			continue
		}
		title, _, _ := strings.Cut(content, "\n")
		out = append(out, Section{Title: strings.TrimSpace(title), Content: content})
	}
	return out
}

// Build embeds every section. A section whose embedding fails is logged and
// left out; record IDs stay dense so they match the record's position.
func Build(ctx context.Context, emb repository.DocumentEmbedder, sections []Section, log *zap.Logger) ([]entity.DocumentRecord, error) {
	records := make([]entity.DocumentRecord, 0, len(sections))
	for i, s := range sections {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		vec, err := emb.EmbedDocument(ctx, s.Title, s.Content)
		if err == nil && len(vec) == 0 {
			err = errEmptyEmbedding
		}
		if err != nil {
			log.Warn("section skipped",
				zap.Int("section", i),
				zap.String("title", s.Title),
				zap.Error(err),
			)
			continue
		}
		records = append(records, entity.DocumentRecord{
			ID:        len(records),
			Title:     s.Title,
			Content:   s.Content,
			Embedding: vec,
		})
		log.Info("section embedded",
			zap.Int("section", i+1),
			zap.Int("of", len(sections)),
			zap.String("title", s.Title),
		)
	}
	return records, nil
}

// WriteJSON writes the records indented, with non-ASCII text kept as is.
func WriteJSON(w io.Writer, records []entity.DocumentRecord) error {
	if records == nil {
		records = []entity.DocumentRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
