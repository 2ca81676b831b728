package db

import (
	"context"
	"fmt"

	"meme-battle/internal/game"
)

// Templates returns the stored meme catalog ordered by id.
func (r *Repository) Templates(ctx context.Context) ([]game.Template, error) {
	var rows []MemeTemplate
	if err := r.conn.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]game.Template, 0, len(rows))
	for _, row := range rows {
		out = append(out, templateFromRow(row))
	}
	return out, nil
}

// Catalog loads the stored templates as a fixed catalog for the engine.
func (r *Repository) Catalog(ctx context.Context) (game.StaticCatalog, error) {
	templates, err := r.Templates(ctx)
	if err != nil {
		return nil, err
	}
	return game.StaticCatalog(templates), nil
}

// UpsertTemplates inserts new templates and refreshes existing ones. It
// returns how many rows were written.
func (r *Repository) UpsertTemplates(ctx context.Context, templates []game.Template) (int, error) {
	written := 0
	conn := r.conn.WithContext(ctx)
	for _, tmpl := range templates {
		row := templateRow(tmpl)
		err := conn.Create(&row).Error
		if isUniqueViolation(err) {
			err = conn.Model(&MemeTemplate{}).Where("id = ?", row.ID).Updates(map[string]any{
				"name":           row.Name,
				"url":            row.URL,
				"caption_fields": row.CaptionFields,
				"description":    row.Description,
				"category":       row.Category,
			}).Error
		}
		if err != nil {
			return written, fmt.Errorf("upsert template %s: %w", tmpl.ID, err)
		}
		written++
	}
	return written, nil
}

func templateRow(tmpl game.Template) MemeTemplate {
	return MemeTemplate{
		ID:            tmpl.ID,
		Name:          tmpl.Name,
		URL:           tmpl.ContentRef,
		CaptionFields: tmpl.CaptionFields,
		Description:   tmpl.Description,
		Category:      tmpl.Category,
	}
}

func templateFromRow(row MemeTemplate) game.Template {
	return game.Template{
		ID:            row.ID,
		ContentRef:    row.URL,
		CaptionFields: row.CaptionFields,
		Name:          row.Name,
		Description:   row.Description,
		Category:      row.Category,
	}
}
