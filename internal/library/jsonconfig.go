package library

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// SaveJSONConfig validates and stores a source document.
func (l *Library) SaveJSONConfig(ctx context.Context, cfg *model.JSONConfig) error {
	if err := model.ValidateJSONConfig(cfg); err != nil {
		return err
	}
	cfg.UpdatedAt = l.now().UTC()
	return putJSON(ctx, l.store, key(NamespaceJSON, cfg.Name), cfg)
}

// LoadJSONConfig returns the saved document named name.
func (l *Library) LoadJSONConfig(ctx context.Context, name string) (*model.JSONConfig, error) {
	var cfg model.JSONConfig
	if err := getJSON(ctx, l.store, key(NamespaceJSON, name), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDocument returns the saved document named name, parsed.
func (l *Library) LoadDocument(ctx context.Context, name string) (jsonval.Value, error) {
	cfg, err := l.LoadJSONConfig(ctx, name)
	if err != nil {
		return jsonval.Value{}, err
	}
	doc, err := jsonval.Decode(cfg.Document)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("parse JSON config %s: %w", name, err)
	}
	return doc, nil
}

// ListJSONConfigs returns every saved document ordered by name.
func (l *Library) ListJSONConfigs(ctx context.Context) ([]*model.JSONConfig, error) {
	return listJSON[model.JSONConfig](ctx, l.store, NamespaceJSON)
}

// DeleteJSONConfig removes a saved document, drops it from every group and
// clears it as the default document of every mapping config, in one
// transaction.
func (l *Library) DeleteJSONConfig(ctx context.Context, name string) error {
	return l.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := deleteKey(ctx, tx, key(NamespaceJSON, name)); err != nil {
			return err
		}
		if err := removeFromGroups(ctx, tx, name); err != nil {
			return err
		}
		return clearDefaultJSON(ctx, tx, name)
	})
}

// removeFromGroups drops a JSON config from every group's members.
func removeFromGroups(ctx context.Context, tx store.Store, name string) error {
	groups, err := listJSON[model.JSONGroup](ctx, tx, NamespaceGroup)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if !g.Remove(name) {
			continue
		}
		if err := putJSON(ctx, tx, key(NamespaceGroup, g.Name), g); err != nil {
			return err
		}
	}
	return nil
}

// clearDefaultJSON clears the default JSON reference of every mapping
// config pointing at name.
func clearDefaultJSON(ctx context.Context, tx store.Store, name string) error {
	configs, err := listJSON[model.MappingConfig](ctx, tx, NamespaceIncident)
	if err != nil {
		return err
	}
	for _, c := range configs {
		if c.DefaultJSONConfig != name {
			continue
		}
		c.DefaultJSONConfig = ""
		if err := putJSON(ctx, tx, key(NamespaceIncident, c.Name), c); err != nil {
			return err
		}
	}
	return nil
}
