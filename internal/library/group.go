package library

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// SaveGroup stores a group of JSON configs. Every member must exist.
func (l *Library) SaveGroup(ctx context.Context, g *model.JSONGroup) error {
	if err := model.ValidateName(g.Name); err != nil {
		return err
	}
	return l.store.RunInTransaction(ctx, func(tx store.Store) error {
		seen := make(map[string]bool, len(g.Members))
		for _, m := range g.Members {
			if seen[m] {
				return fmt.Errorf("group %s lists %s twice", g.Name, m)
			}
			seen[m] = true
			ok, err := exists(ctx, tx, key(NamespaceJSON, m))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("group member %q: %w", m, ErrNotFound)
			}
		}
		if g.Members == nil {
			g.Members = []string{}
		}
		return putJSON(ctx, tx, key(NamespaceGroup, g.Name), g)
	})
}

// LoadGroup returns the group named name.
func (l *Library) LoadGroup(ctx context.Context, name string) (*model.JSONGroup, error) {
	var g model.JSONGroup
	if err := getJSON(ctx, l.store, key(NamespaceGroup, name), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns every group ordered by name.
func (l *Library) ListGroups(ctx context.Context) ([]*model.JSONGroup, error) {
	return listJSON[model.JSONGroup](ctx, l.store, NamespaceGroup)
}

// DeleteGroup removes a group. Its member documents are kept.
func (l *Library) DeleteGroup(ctx context.Context, name string) error {
	return deleteKey(ctx, l.store, key(NamespaceGroup, name))
}
