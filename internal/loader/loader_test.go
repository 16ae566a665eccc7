package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corona-HomeLab/FinSight/internal/model"
	apperr "github.com/Corona-HomeLab/FinSight/internal/pkg/errors"
)

func testSource(endpoint string) model.SourceConfig {
	return model.SourceConfig{
		SourceID:  "txns",
		Name:      "Transactions API",
		Endpoint:  endpoint,
		Namespace: "txns",
		DataType:  model.DataTypeTransactions,
	}
}

func TestLoaderClassifiesUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"username": "alice", "id": "u1", "email": "alice@example.com"}]`))
	}))
	defer server.Close()

	docs, err := NewLoader(nil).Load(context.Background(), testSource(server.URL))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, model.TypeUser, docs[0].Metadata[model.MetaType])
	require.Equal(t, "alice", docs[0].Metadata[model.MetaUsername])
	require.Equal(t, "u1", docs[0].Metadata[model.MetaUserID])
	require.Contains(t, docs[0].Content, "email: alice@example.com")
}

func TestLoaderClassifiesTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "t1", "amount": 42.5, "name": "Corner Cafe", "category": "dining", "date": "2026-08-01T10:00:00Z"},
			{"id": "t2", "amount": -15, "name": "Refund Co"}
		]`))
	}))
	defer server.Close()

	src := testSource(server.URL)
	src.Username = "alice"
	docs, err := NewLoader(nil).Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	debit := docs[0]
	require.Equal(t, model.TypeTransaction, debit.Metadata[model.MetaType])
	require.Equal(t, model.TransactionDebit, debit.Metadata[model.MetaTransactionType])
	require.Equal(t, "42.50", debit.Metadata[model.MetaAmount])
	require.Equal(t, "t1", debit.Metadata[model.MetaTransactionID])
	require.Equal(t, "Corner Cafe", debit.Metadata[model.MetaMerchant])
	require.Equal(t, "A debit transaction of $42.50 by alice at Corner Cafe on 2026-08-01 in the dining category.", debit.Content)

	credit := docs[1]
	require.Equal(t, model.TransactionCredit, credit.Metadata[model.MetaTransactionType])
	require.Contains(t, credit.Content, "A credit transaction of $15.00")
}

func TestLoaderTransactionUsernameFallsBackToSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"transaction_id": "t1", "amount": "9.99"}]`))
	}))
	defer server.Close()

	src := testSource(server.URL)
	src.Username = "bob"
	docs, err := NewLoader(nil).Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "bob", docs[0].Metadata[model.MetaUsername])
	require.Contains(t, docs[0].Content, "by bob")
}

func TestLoaderClassifiesGeneral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate": 4.25, "currency": "USD"}`))
	}))
	defer server.Close()

	docs, err := NewLoader(nil).Load(context.Background(), testSource(server.URL))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, model.TypeGeneral, docs[0].Metadata[model.MetaType])
	require.Equal(t, "currency: USD\nrate: 4.25", docs[0].Content)
}

func TestLoaderDataKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"username": "alice"}], "total": 1}`))
	}))
	defer server.Close()

	src := testSource(server.URL)
	src.DataKey = "items"
	docs, err := NewLoader(nil).Load(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, model.TypeUser, docs[0].Metadata[model.MetaType])

	src.DataKey = "missing"
	_, err = NewLoader(nil).Load(context.Background(), src)
	require.ErrorIs(t, err, apperr.ErrFormat)
}

func TestLoaderFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewLoader(nil).Load(context.Background(), testSource(server.URL))
	require.ErrorIs(t, err, apperr.ErrFetch)

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()
	_, err = NewLoader(nil).Load(context.Background(), testSource(closed.URL))
	require.ErrorIs(t, err, apperr.ErrFetch)
}

func TestLoaderMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [`))
	}))
	defer server.Close()

	_, err := NewLoader(nil).Load(context.Background(), testSource(server.URL))
	require.ErrorIs(t, err, apperr.ErrFormat)
}

func TestLoaderSendsParamsAndHeaders(t *testing.T) {
	var gotQuery, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("account")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src := testSource(server.URL)
	src.Params = map[string]string{"account": "checking"}
	src.Headers = map[string]string{"Authorization": "Bearer abc"}
	docs, err := NewLoader(nil).Load(context.Background(), src)
	require.NoError(t, err)
	require.Empty(t, docs)
	require.Equal(t, "checking", gotQuery)
	require.Equal(t, "Bearer abc", gotAuth)
}
