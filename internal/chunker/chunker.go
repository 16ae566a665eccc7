// Package chunker splits documents into size-bounded, overlap-free chunks and
// derives per-user summary documents for transaction sources.
package chunker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Corona-HomeLab/FinSight/internal/model"
)

const DefaultChunkSize = 500

type Chunker struct {
	maxChunkSize int
}

func NewChunker(maxChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	return &Chunker{maxChunkSize: maxChunkSize}
}

// Chunk turns loader documents into vector-store-ready chunks. Transaction
// sources additionally get one summary document per distinct username,
// emitted ahead of the raw chunks. Summaries run through the same metadata
// pass as every other chunk, so they carry the source tags too.
func (c *Chunker) Chunk(src model.SourceConfig, docs []model.Document) []model.Document {
	if src.DataType == model.DataTypeTransactions {
		docs = append(c.summarize(docs), docs...)
	}
	var out []model.Document
	for _, doc := range docs {
		for _, part := range splitText(doc.Content, c.maxChunkSize) {
			out = append(out, model.Document{
				Content:  part,
				Metadata: c.chunkMetadata(src, doc.Metadata),
			})
		}
	}
	return out
}

func (c *Chunker) chunkMetadata(src model.SourceConfig, docMeta map[string]string) map[string]string {
	metadata := make(map[string]string, len(docMeta)+3)
	for k, v := range docMeta {
		metadata[k] = v
	}
	metadata[model.MetaSourceID] = src.SourceID
	metadata[model.MetaNamespace] = src.Namespace
	metadata[model.MetaDataType] = src.DataType
	// Filters match on equality, so an absent username becomes a literal
	// "unknown" rather than a missing key.
	switch metadata[model.MetaType] {
	case model.TypeTransaction, model.TypeSummary:
		if metadata[model.MetaUsername] == "" {
			metadata[model.MetaUsername] = model.UnknownUsername
		}
	}
	return metadata
}

type userTotals struct {
	count   int
	debits  float64
	credits float64
}

// summarize computes one aggregate document per username: transaction count,
// debit total, credit total and net change.
func (c *Chunker) summarize(docs []model.Document) []model.Document {
	totals := make(map[string]*userTotals)
	for _, doc := range docs {
		if doc.Metadata[model.MetaType] != model.TypeTransaction {
			continue
		}
		username := doc.Metadata[model.MetaUsername]
		if username == "" {
			username = model.UnknownUsername
		}
		amount, err := strconv.ParseFloat(doc.Metadata[model.MetaAmount], 64)
		if err != nil {
			continue
		}
		t, ok := totals[username]
		if !ok {
			t = &userTotals{}
			totals[username] = t
		}
		t.count++
		if amount < 0 {
			t.credits += -amount
		} else {
			t.debits += amount
		}
	}

	usernames := make([]string, 0, len(totals))
	for username := range totals {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	summaries := make([]model.Document, 0, len(usernames))
	for _, username := range usernames {
		t := totals[username]
		net := t.debits - t.credits
		content := fmt.Sprintf(
			"Transaction summary for %s: %d transactions in total, $%.2f in debits, $%.2f in credits, for a net change of $%.2f.",
			username, t.count, t.debits, t.credits, net,
		)
		summaries = append(summaries, model.Document{
			Content: content,
			Metadata: map[string]string{
				model.MetaType:     model.TypeSummary,
				model.MetaUsername: username,
			},
		})
	}
	return summaries
}

// splitText produces overlap-free pieces no longer than maxSize, cutting on
// whitespace where possible. A single word longer than maxSize is hard-cut.
func splitText(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}
	var parts []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		for len(word) > maxSize {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			parts = append(parts, word[:maxSize])
			word = word[maxSize:]
		}
		if word == "" {
			continue
		}
		need := len(word)
		if current.Len() > 0 {
			need++
		}
		if current.Len()+need > maxSize {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
