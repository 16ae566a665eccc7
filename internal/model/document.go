package model

// Metadata keys attached to documents and chunks.
const (
	MetaType            = "type"
	MetaDataType        = "data_type"
	MetaNamespace       = "namespace"
	MetaSourceID        = "source_id"
	MetaUsername        = "username"
	MetaUserID          = "user_id"
	MetaTransactionID   = "transaction_id"
	MetaCategory        = "category"
	MetaAmount          = "amount"
	MetaDate            = "date"
	MetaMerchant        = "merchant"
	MetaTransactionType = "transaction_type"
)

// Values for the MetaType key.
const (
	TypeUser        = "user"
	TypeTransaction = "transaction"
	TypeGeneral     = "general"
	TypeSummary     = "summary"
)

// Values for the MetaTransactionType key. Negative amounts represent
// refunds/credits in this model.
const (
	TransactionDebit  = "debit"
	TransactionCredit = "credit"
)

// UnknownUsername replaces an absent username so metadata filters never have
// to deal with missing keys.
const UnknownUsername = "unknown"

// Document is a unit of text plus metadata. Produced by the loader, split by
// the chunker, embedded into the vector store and returned from retrieval.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score,omitempty"`
}

// ChatTurn is one question/answer exchange in the assistant's history.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
