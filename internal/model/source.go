package model

import "time"

// Data type tags carried by sources. Free-form in config, but routing only
// understands these families.
const (
	DataTypeGeneral      = "general"
	DataTypeUser         = "user"
	DataTypeUsers        = "users"
	DataTypeTransactions = "transactions"
	DataTypeFinancial    = "financial"
)

// SourceConfig describes one configured external JSON API source.
type SourceConfig struct {
	SourceID    string            `json:"source_id"`
	Name        string            `json:"name"`
	Endpoint    string            `json:"endpoint"`
	Description string            `json:"description"`
	Namespace   string            `json:"namespace"`
	DataType    string            `json:"data_type"`
	Params      map[string]string `json:"params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	DataKey     string            `json:"data_key,omitempty"`
	Username    string            `json:"username,omitempty"`
	UserID      string            `json:"user_id,omitempty"`
	Active      bool              `json:"active"`
	AddedAt     time.Time         `json:"added_at"`
	DocumentIDs []string          `json:"document_ids"`
}

// IsUserTyped reports whether the source holds user/identity records.
func (s SourceConfig) IsUserTyped() bool {
	return s.DataType == DataTypeUser || s.DataType == DataTypeUsers
}

// IsTransactionTyped reports whether the source holds transaction-shaped data.
func (s SourceConfig) IsTransactionTyped() bool {
	switch s.DataType {
	case DataTypeTransactions, DataTypeFinancial, DataTypeGeneral:
		return true
	}
	return false
}
