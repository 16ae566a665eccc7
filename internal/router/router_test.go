package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corona-HomeLab/FinSight/internal/model"
)

func testSources() map[string]model.SourceConfig {
	return map[string]model.SourceConfig{
		"user_directory": {
			SourceID:  "user_directory",
			Namespace: "users_ns",
			DataType:  model.DataTypeUsers,
		},
		"alice_txns": {
			SourceID:  "alice_txns",
			Namespace: "alice_ns",
			DataType:  model.DataTypeTransactions,
			Username:  "alice",
		},
		"shared_txns": {
			SourceID:  "shared_txns",
			Namespace: "shared_ns",
			DataType:  model.DataTypeFinancial,
		},
	}
}

func TestSelectUsersRule(t *testing.T) {
	r := New()
	decision := r.Select("Who are the users?", testSources())
	require.Equal(t, []string{"users_ns"}, decision.Namespaces)
	require.Empty(t, decision.Username)
}

func TestSelectTransactionsForIndividual(t *testing.T) {
	r := New()
	decision := r.Select("Show transactions for alice", testSources())
	require.Equal(t, []string{"alice_ns"}, decision.Namespaces)
	require.Equal(t, "alice", decision.Username)
}

func TestSelectTransactionsWithoutIndividual(t *testing.T) {
	r := New()
	decision := r.Select("List all payments", testSources())
	require.Equal(t, []string{"alice_ns", "shared_ns"}, decision.Namespaces)
	require.Empty(t, decision.Username)
}

func TestSelectIndividualWithoutKeyword(t *testing.T) {
	r := New()
	decision := r.Select("How much did Alice spend last week?", testSources())
	require.Equal(t, []string{"alice_ns"}, decision.Namespaces)
	require.Equal(t, "alice", decision.Username)
}

func TestSelectNoMatch(t *testing.T) {
	r := New()
	decision := r.Select("What is the weather like today?", testSources())
	require.Empty(t, decision.Namespaces)
	require.Empty(t, decision.Username)
}

func TestSelectKeywordRuleWithNoConfiguredSources(t *testing.T) {
	r := New()
	sources := map[string]model.SourceConfig{
		"alice_txns": {
			SourceID:  "alice_txns",
			Namespace: "alice_ns",
			DataType:  model.DataTypeTransactions,
			Username:  "alice",
		},
	}
	// The users rule fires on the keyword but nothing user-typed exists;
	// later rules must not pick up the question.
	decision := r.Select("Who are the users?", sources)
	require.Empty(t, decision.Namespaces)
}

func TestSelectEmptySources(t *testing.T) {
	r := New()
	decision := r.Select("Show transactions", map[string]model.SourceConfig{})
	require.Empty(t, decision.Namespaces)
}
