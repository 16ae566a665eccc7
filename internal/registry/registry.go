// Package registry owns the set of configured sources and their persisted
// JSON representation. The file is the durable source of truth; the vector
// store is rebuilt from it by a refresh.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Corona-HomeLab/FinSight/internal/model"
	apperr "github.com/Corona-HomeLab/FinSight/internal/pkg/errors"
)

// AddInput is the caller-supplied part of a source config.
type AddInput struct {
	Name        string            `json:"name"`
	Endpoint    string            `json:"endpoint"`
	Description string            `json:"description"`
	Namespace   string            `json:"namespace"`
	DataType    string            `json:"data_type"`
	Params      map[string]string `json:"params"`
	Headers     map[string]string `json:"headers"`
	DataKey     string            `json:"data_key"`
	Username    string            `json:"username"`
	UserID      string            `json:"user_id"`
}

type Registry struct {
	mu      sync.Mutex
	path    string
	sources map[string]model.SourceConfig
}

// NewRegistry loads the registry file at path. A corrupt file is moved aside
// to <path>.bak and the registry starts empty; any other load failure also
// degrades to empty. The process never refuses to start over a bad file.
func NewRegistry(ctx context.Context, path string) *Registry {
	r := &Registry{
		path:    path,
		sources: make(map[string]model.SourceConfig),
	}
	r.load(ctx)
	return r
}

func (r *Registry) load(ctx context.Context) {
	logger := logutil.GetLogger(ctx).With(zap.String("path", r.path))
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no sources config file, starting empty")
		} else {
			logger.Error("read sources config failed, starting empty", zap.Error(err))
		}
		return
	}
	var sources map[string]model.SourceConfig
	if err := json.Unmarshal(data, &sources); err != nil {
		backup := r.path + ".bak"
		logger.Error("sources config corrupted, moving aside", zap.String("backup", backup), zap.Error(err))
		if renameErr := os.Rename(r.path, backup); renameErr != nil {
			logger.Error("quarantine corrupt config failed", zap.Error(renameErr))
		}
		return
	}
	for id, src := range sources {
		src.SourceID = id
		r.sources[id] = src
	}
	logger.Info("sources loaded", zap.Int("count", len(r.sources)))
}

// Add validates input, stores the record keyed by sourceID (last write wins)
// and persists the registry. The stored record is returned.
func (r *Registry) Add(ctx context.Context, sourceID string, input AddInput) (model.SourceConfig, error) {
	src, err := buildSource(sourceID, input)
	if err != nil {
		return model.SourceConfig{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.sources[sourceID]
	r.sources[sourceID] = src
	if err := r.saveLocked(); err != nil {
		// Keep the in-memory view aligned with what is durably recorded.
		r.restoreLocked(sourceID, prev, existed)
		return model.SourceConfig{}, err
	}
	logutil.GetLogger(ctx).Info("source added",
		zap.String("source_id", sourceID),
		zap.String("namespace", src.Namespace),
		zap.String("data_type", src.DataType),
	)
	return src, nil
}

func buildSource(sourceID string, input AddInput) (model.SourceConfig, error) {
	if sourceID == "" {
		return model.SourceConfig{}, fmt.Errorf("%w: source_id is required", apperr.ErrValidation)
	}
	if input.Name == "" {
		return model.SourceConfig{}, fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	parsed, err := url.Parse(input.Endpoint)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return model.SourceConfig{}, fmt.Errorf("%w: endpoint must be a valid http(s) url", apperr.ErrValidation)
	}
	namespace := input.Namespace
	if namespace == "" {
		namespace = sourceID
	}
	dataType := input.DataType
	if dataType == "" {
		dataType = model.DataTypeGeneral
	}
	return model.SourceConfig{
		SourceID:    sourceID,
		Name:        input.Name,
		Endpoint:    input.Endpoint,
		Description: input.Description,
		Namespace:   namespace,
		DataType:    dataType,
		Params:      input.Params,
		Headers:     input.Headers,
		DataKey:     input.DataKey,
		Username:    input.Username,
		UserID:      input.UserID,
		Active:      true,
		AddedAt:     time.Now(),
		DocumentIDs: []string{},
	}, nil
}

// SetDocumentIDs records the ids assigned by the vector store for the
// source's last ingestion batch.
func (r *Registry) SetDocumentIDs(ctx context.Context, sourceID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[sourceID]
	if !ok {
		return fmt.Errorf("%w: source %s", apperr.ErrNotFound, sourceID)
	}
	prev := src
	src.DocumentIDs = ids
	r.sources[sourceID] = src
	if err := r.saveLocked(); err != nil {
		r.sources[sourceID] = prev
		return err
	}
	return nil
}

// Remove deletes the record outright. Removing an unknown id is a logged
// no-op.
func (r *Registry) Remove(ctx context.Context, sourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.sources[sourceID]
	if !ok {
		logutil.GetLogger(ctx).Warn("source not found, nothing to remove", zap.String("source_id", sourceID))
		return nil
	}
	delete(r.sources, sourceID)
	if err := r.saveLocked(); err != nil {
		r.sources[sourceID] = prev
		return err
	}
	logutil.GetLogger(ctx).Info("source removed", zap.String("source_id", sourceID))
	return nil
}

func (r *Registry) Get(sourceID string) (model.SourceConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[sourceID]
	return src, ok
}

// ActiveSources returns a copy of all records with active == true, keyed by
// source id.
func (r *Registry) ActiveSources() map[string]model.SourceConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := make(map[string]model.SourceConfig)
	for id, src := range r.sources {
		if src.Active {
			active[id] = src
		}
	}
	return active
}

// List returns every record sorted by source id.
func (r *Registry) List() []model.SourceConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]model.SourceConfig, 0, len(r.sources))
	for _, src := range r.sources {
		result = append(result, src)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SourceID < result[j].SourceID
	})
	return result
}

func (r *Registry) restoreLocked(sourceID string, prev model.SourceConfig, existed bool) {
	if existed {
		r.sources[sourceID] = prev
		return
	}
	delete(r.sources, sourceID)
}

// saveLocked writes the registry to a temp file and renames it over the
// target so a crash mid-write never leaves a truncated config readable.
func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(r.sources, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sources tmp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace sources file: %w", err)
	}
	return nil
}
