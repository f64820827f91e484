package library

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// SaveMappingConfig validates and stores cfg, replacing any config with
// the same name. Its default JSON config and attachment refs must exist.
func (l *Library) SaveMappingConfig(ctx context.Context, cfg *model.MappingConfig) error {
	if err := model.ValidateMappingConfig(cfg); err != nil {
		return err
	}
	return l.store.RunInTransaction(ctx, func(tx store.Store) error {
		if cfg.DefaultJSONConfig != "" {
			ok, err := exists(ctx, tx, key(NamespaceJSON, cfg.DefaultJSONConfig))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("default JSON config %q: %w", cfg.DefaultJSONConfig, ErrNotFound)
			}
		}
		for _, f := range cfg.Fields {
			for _, r := range f.AttachmentRefs {
				ok, err := exists(ctx, tx, key(NamespaceAttachment, r.AttachmentID))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("attachment %s on field %s: %w", r.AttachmentID, f.ShortName, ErrNotFound)
				}
			}
		}
		cfg.UpdatedAt = l.now().UTC()
		return putJSON(ctx, tx, key(NamespaceIncident, cfg.Name), cfg)
	})
}

// LoadMappingConfig returns the saved config named name.
func (l *Library) LoadMappingConfig(ctx context.Context, name string) (*model.MappingConfig, error) {
	var cfg model.MappingConfig
	if err := getJSON(ctx, l.store, key(NamespaceIncident, name), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DeleteMappingConfig removes the saved config named name.
func (l *Library) DeleteMappingConfig(ctx context.Context, name string) error {
	return deleteKey(ctx, l.store, key(NamespaceIncident, name))
}

// ListMappingConfigs returns every saved mapping config ordered by name.
func (l *Library) ListMappingConfigs(ctx context.Context) ([]*model.MappingConfig, error) {
	return listJSON[model.MappingConfig](ctx, l.store, NamespaceIncident)
}
