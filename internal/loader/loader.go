// Package loader fetches raw JSON from a source endpoint and normalizes each
// item into a document with routing metadata.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Corona-HomeLab/FinSight/internal/model"
	apperr "github.com/Corona-HomeLab/FinSight/internal/pkg/errors"
)

type Loader struct {
	client *http.Client
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client}
}

// Load issues one GET to the source endpoint and converts the response into
// documents. Network/HTTP failures map to ErrFetch, shape problems to
// ErrFormat; neither is retried here, the caller decides.
func (l *Loader) Load(ctx context.Context, src model.SourceConfig) ([]model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperr.ErrFetch, err)
	}
	if len(src.Params) > 0 {
		query := req.URL.Query()
		for key, value := range src.Params {
			query.Set(key, value)
		}
		req.URL.RawQuery = query.Encode()
	}
	for key, value := range src.Headers {
		req.Header.Set(key, value)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned %s", apperr.ErrFetch, src.Endpoint, resp.Status)
	}

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperr.ErrFormat, err)
	}
	if src.DataKey != "" {
		obj, ok := payload.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: data_key %q set but response is not an object", apperr.ErrFormat, src.DataKey)
		}
		payload, ok = obj[src.DataKey]
		if !ok {
			return nil, fmt.Errorf("%w: data_key %q not present in response", apperr.ErrFormat, src.DataKey)
		}
	}

	var docs []model.Document
	if items, ok := payload.([]interface{}); ok {
		docs = make([]model.Document, 0, len(items))
		for _, item := range items {
			docs = append(docs, formatItem(item, src))
		}
	} else {
		docs = []model.Document{formatItem(payload, src)}
	}
	logutil.GetLogger(ctx).Info("source loaded",
		zap.String("source_id", src.SourceID),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

// formatItem classifies one JSON item and renders its text content. Items
// carrying a username are user records; items carrying transaction-ish fields
// get a readable sentence; everything else falls back to key: value lines.
func formatItem(item interface{}, src model.SourceConfig) model.Document {
	metadata := baseMetadata(src)
	obj, ok := item.(map[string]interface{})
	if !ok {
		metadata[model.MetaType] = model.TypeGeneral
		return model.Document{Content: fmt.Sprint(item), Metadata: metadata}
	}

	if username, ok := stringField(obj, "username"); ok {
		metadata[model.MetaType] = model.TypeUser
		metadata[model.MetaUsername] = username
		if id, ok := stringField(obj, "user_id", "id"); ok {
			metadata[model.MetaUserID] = id
		}
		return model.Document{Content: renderGeneric(obj), Metadata: metadata}
	}

	if hasAny(obj, "amount", "transaction_id", "user_id") {
		return formatTransaction(obj, src, metadata)
	}

	metadata[model.MetaType] = model.TypeGeneral
	return model.Document{Content: renderGeneric(obj), Metadata: metadata}
}

func formatTransaction(obj map[string]interface{}, src model.SourceConfig, metadata map[string]string) model.Document {
	amount, _ := floatField(obj, "amount")
	// Negative amounts are refunds/credits in this model.
	txType := model.TransactionDebit
	if amount < 0 {
		txType = model.TransactionCredit
	}

	username, ok := stringField(obj, "username")
	if !ok {
		username = src.Username
	}
	merchant, _ := stringField(obj, "name", "merchant")
	category, _ := stringField(obj, "category")
	date, _ := stringField(obj, "date")
	date = shortDate(date)

	var sb strings.Builder
	fmt.Fprintf(&sb, "A %s transaction of $%.2f", txType, abs(amount))
	if username != "" {
		fmt.Fprintf(&sb, " by %s", username)
	}
	if merchant != "" {
		fmt.Fprintf(&sb, " at %s", merchant)
	}
	if date != "" {
		fmt.Fprintf(&sb, " on %s", date)
	}
	if category != "" {
		fmt.Fprintf(&sb, " in the %s category", category)
	}
	sb.WriteString(".")

	metadata[model.MetaType] = model.TypeTransaction
	metadata[model.MetaTransactionType] = txType
	metadata[model.MetaAmount] = strconv.FormatFloat(amount, 'f', 2, 64)
	if username != "" {
		metadata[model.MetaUsername] = username
	}
	if id, ok := stringField(obj, "transaction_id", "id"); ok {
		metadata[model.MetaTransactionID] = id
	}
	if merchant != "" {
		metadata[model.MetaMerchant] = merchant
	}
	if category != "" {
		metadata[model.MetaCategory] = category
	}
	if date != "" {
		metadata[model.MetaDate] = date
	}
	return model.Document{Content: sb.String(), Metadata: metadata}
}

func baseMetadata(src model.SourceConfig) map[string]string {
	metadata := map[string]string{
		model.MetaSourceID:  src.SourceID,
		model.MetaNamespace: src.Namespace,
		model.MetaDataType:  src.DataType,
	}
	if src.Username != "" {
		metadata[model.MetaUsername] = src.Username
	}
	if src.UserID != "" {
		metadata[model.MetaUserID] = src.UserID
	}
	return metadata
}

func renderGeneric(obj map[string]interface{}) string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", key, obj[key]))
	}
	return strings.Join(lines, "\n")
}

func stringField(obj map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		value, ok := obj[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		default:
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

// floatField coerces numeric-ish values so sign-based classification works
// for both JSON numbers and stringly typed upstreams.
func floatField(obj map[string]interface{}, key string) (float64, bool) {
	value, ok := obj[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func hasAny(obj map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func shortDate(date string) string {
	// Keep just the date part of RFC3339-ish timestamps.
	if idx := strings.IndexByte(date, 'T'); idx > 0 {
		return date[:idx]
	}
	return date
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
