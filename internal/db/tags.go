package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"maintenance-service/internal/models"
	"maintenance-service/internal/tags"
)

// EnsureTagDefinitions inserts missing tag definitions. Existing rows keep
// whatever name and colour an operator gave them.
func (d *DB) EnsureTagDefinitions(ctx context.Context, defs []models.Tag) error {
	batch := &pgx.Batch{}
	for _, t := range defs {
		batch.Queue(`
		INSERT INTO tags (slug, name, color, icon)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO NOTHING`, t.Slug, t.Name, t.Color, t.Icon)
	}
	if err := d.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to ensure tag definitions: %w", err)
	}
	return nil
}

// ApplyTags attaches and detaches tags by slug on one entity in a single
// transaction. Transactions on the same entity are serialised with an
// advisory lock so a superseded tag is never attached next to the tag that
// supersedes it. Only rows actually inserted or deleted are reported.
func (d *DB) ApplyTags(ctx context.Context, kind models.TargetKind, id int64, add, remove []string) (tags.Change, error) {
	var change tags.Change
	if len(add) == 0 && len(remove) == 0 {
		return change, nil
	}

	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return change, fmt.Errorf("failed to begin tag transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`, string(kind), id); err != nil {
		return tags.Change{}, fmt.Errorf("failed to lock %s %d for tagging: %w", kind, id, err)
	}

	for _, slug := range remove {
		ct, err := tx.Exec(ctx, `
		DELETE FROM taggables tg
		USING tags t
		WHERE tg.tag_id = t.id AND t.slug = $1 AND tg.taggable_type = $2 AND tg.taggable_id = $3`,
			slug, string(kind), id)
		if err != nil {
			return tags.Change{}, fmt.Errorf("failed to detach tag %s: %w", slug, err)
		}
		if ct.RowsAffected() > 0 {
			change.Removed = append(change.Removed, slug)
		}
	}
	for _, slug := range add {
		ct, err := tx.Exec(ctx, `
		INSERT INTO taggables (tag_id, taggable_type, taggable_id)
		SELECT t.id, $2, $3 FROM tags t
		WHERE t.slug = $1
		AND NOT EXISTS (
			SELECT 1 FROM taggables tg
			JOIN tags sup ON sup.id = tg.tag_id
			WHERE sup.slug = $4 AND tg.taggable_type = $2 AND tg.taggable_id = $3
		)
		ON CONFLICT DO NOTHING`,
			slug, string(kind), id, tags.SupersededBy[slug])
		if err != nil {
			return tags.Change{}, fmt.Errorf("failed to attach tag %s: %w", slug, err)
		}
		if ct.RowsAffected() > 0 {
			change.Added = append(change.Added, slug)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return tags.Change{}, fmt.Errorf("failed to commit tag changes: %w", err)
	}
	return change, nil
}
