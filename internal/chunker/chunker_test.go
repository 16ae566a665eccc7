package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corona-HomeLab/FinSight/internal/model"
)

func txnSource() model.SourceConfig {
	return model.SourceConfig{
		SourceID:  "txns",
		Namespace: "txns",
		DataType:  model.DataTypeTransactions,
	}
}

func txnDoc(username, amount string) model.Document {
	return model.Document{
		Content: "A transaction.",
		Metadata: map[string]string{
			model.MetaType:     model.TypeTransaction,
			model.MetaUsername: username,
			model.MetaAmount:   amount,
		},
	}
}

func TestChunkShortDocumentPassesThrough(t *testing.T) {
	c := NewChunker(500)
	src := model.SourceConfig{SourceID: "rates", Namespace: "rates", DataType: model.DataTypeGeneral}
	docs := c.Chunk(src, []model.Document{{Content: "rate: 4.25", Metadata: map[string]string{model.MetaType: model.TypeGeneral}}})
	require.Len(t, docs, 1)
	require.Equal(t, "rate: 4.25", docs[0].Content)
	require.Equal(t, "rates", docs[0].Metadata[model.MetaNamespace])
	require.Equal(t, "rates", docs[0].Metadata[model.MetaSourceID])
}

func TestChunkSplitsLongDocument(t *testing.T) {
	c := NewChunker(50)
	long := strings.Repeat("seven wordy tokens fill the line nicely today ", 20)
	src := model.SourceConfig{SourceID: "notes", Namespace: "notes", DataType: model.DataTypeGeneral}
	docs := c.Chunk(src, []model.Document{{Content: long, Metadata: map[string]string{}}})
	require.Greater(t, len(docs), 1)
	for _, doc := range docs {
		require.LessOrEqual(t, len(doc.Content), 50)
		require.NotEmpty(t, doc.Content)
	}
}

func TestSplitTextHardCutsOversizedWord(t *testing.T) {
	parts := splitText(strings.Repeat("x", 120), 50)
	require.Equal(t, []string{strings.Repeat("x", 50), strings.Repeat("x", 50), strings.Repeat("x", 20)}, parts)
}

func TestChunkBuildsTransactionSummaries(t *testing.T) {
	c := NewChunker(500)
	docs := c.Chunk(txnSource(), []model.Document{
		txnDoc("alice", "100.00"),
		txnDoc("alice", "-25.00"),
		txnDoc("bob", "10.00"),
	})

	// Summaries come first, sorted by username, followed by the raw chunks.
	require.Len(t, docs, 5)
	require.Equal(t, model.TypeSummary, docs[0].Metadata[model.MetaType])
	require.Equal(t, "alice", docs[0].Metadata[model.MetaUsername])
	// Summary chunks inherit the source tags like every other chunk.
	require.Equal(t, "txns", docs[0].Metadata[model.MetaSourceID])
	require.Equal(t, "txns", docs[0].Metadata[model.MetaNamespace])
	require.Equal(t, model.DataTypeTransactions, docs[0].Metadata[model.MetaDataType])
	require.Equal(t,
		"Transaction summary for alice: 2 transactions in total, $100.00 in debits, $25.00 in credits, for a net change of $75.00.",
		docs[0].Content)
	require.Equal(t, "bob", docs[1].Metadata[model.MetaUsername])
	require.Equal(t,
		"Transaction summary for bob: 1 transactions in total, $10.00 in debits, $0.00 in credits, for a net change of $10.00.",
		docs[1].Content)
}

func TestChunkSummaryIgnoresUnparsableAmounts(t *testing.T) {
	c := NewChunker(500)
	docs := c.Chunk(txnSource(), []model.Document{
		txnDoc("alice", "not-a-number"),
	})
	// No summary is derivable, only the raw chunk survives.
	require.Len(t, docs, 1)
	require.Equal(t, model.TypeTransaction, docs[0].Metadata[model.MetaType])
}

func TestChunkNormalizesMissingUsername(t *testing.T) {
	c := NewChunker(500)
	docs := c.Chunk(txnSource(), []model.Document{
		{
			Content: "A transaction.",
			Metadata: map[string]string{
				model.MetaType:   model.TypeTransaction,
				model.MetaAmount: "5.00",
			},
		},
	})
	require.Len(t, docs, 2)
	require.Equal(t, model.UnknownUsername, docs[0].Metadata[model.MetaUsername])
	require.Equal(t, model.UnknownUsername, docs[1].Metadata[model.MetaUsername])
}

func TestChunkDoesNotSummarizeNonTransactionSources(t *testing.T) {
	c := NewChunker(500)
	src := model.SourceConfig{SourceID: "users", Namespace: "users", DataType: model.DataTypeUsers}
	docs := c.Chunk(src, []model.Document{
		{Content: "username: alice", Metadata: map[string]string{model.MetaType: model.TypeUser}},
	})
	require.Len(t, docs, 1)
	require.Equal(t, model.TypeUser, docs[0].Metadata[model.MetaType])
}
