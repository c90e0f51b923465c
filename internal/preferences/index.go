// Package preferences resolves which users subscribed to a notification
// type for a given target.
package preferences

import (
	"context"
	"fmt"
	"sort"

	"maintenance-service/internal/models"
)

// Store is the read-only persistence the index needs.
type Store interface {
	PreferencesByType(ctx context.Context, notificationType string) ([]models.NotificationPreference, error)
	UsersByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

// Applies reports whether a preference scope covers the given target.
// A nil scope is global.
func Applies(scope *models.Scope, kind models.TargetKind, id int64) bool {
	if scope == nil {
		return true
	}
	return scope.Kind == kind && scope.ID == id
}

// Index looks up subscribers through Store.
type Index struct {
	store Store
}

func NewIndex(store Store) *Index {
	return &Index{store: store}
}

// Subscribers returns each user subscribed to notificationType either
// globally or for the target kind/id, once, ordered by user id.
func (i *Index) Subscribers(ctx context.Context, notificationType string, kind models.TargetKind, id int64) ([]models.User, error) {
	prefs, err := i.store.PreferencesByType(ctx, notificationType)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences for %s: %w", notificationType, err)
	}

	seen := make(map[int64]struct{})
	var ids []int64
	for _, p := range prefs {
		if p.Type != notificationType || !Applies(p.Scope, kind, id) {
			continue
		}
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := i.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscribers for %s: %w", notificationType, err)
	}
	sort.Slice(users, func(a, b int) bool { return users[a].ID < users[b].ID })
	return users, nil
}
