package enumerator

import (
	"time"

	"github.com/shaibs3/pagecache/internal/db_model"
)

// category is one store-backed source of paths
type category struct {
	name  string
	query db_model.Query
	paths func(db_model.Row) []string

	// limit caps the rows read, zero reads everything
	limit int
}

func navigationCategory() category {
	return category{
		name: "navigation",
		query: db_model.Query{
			Table:   "news_countries",
			Columns: []string{"code"},
			Order:   []db_model.OrderBy{{Column: "code"}},
		}.Where("is_active", db_model.OpEq, true),
		paths: func(r db_model.Row) []string {
			return join("/news", r.String("code"))
		},
	}
}

// newsHistoryCategory covers every non-archived item that has a stable slug
func newsHistoryCategory() category {
	return category{
		name: "news",
		query: db_model.Query{
			Table:   "news_items",
			Columns: []string{"country", "slug"},
			Order:   []db_model.OrderBy{{Column: "published_at", Desc: true}, {Column: "id"}},
		}.
			Where("archived", db_model.OpEq, false).
			Where("slug", db_model.OpNotNull, nil),
		paths: func(r db_model.Row) []string {
			return join("/news", r.String("country"), r.String("slug"))
		},
	}
}

// newsWindowCategory covers items published since the cutoff, falling back to the id when there is no slug
func newsWindowCategory(since time.Time) category {
	return category{
		name: "newsWindow",
		query: db_model.Query{
			Table:   "news_items",
			Columns: []string{"id", "country", "slug"},
			Order:   []db_model.OrderBy{{Column: "published_at", Desc: true}, {Column: "id"}},
		}.
			Where("archived", db_model.OpEq, false).
			Where("published_at", db_model.OpGte, since),
		paths: func(r db_model.Row) []string {
			key := r.String("slug")
			if key == "" {
				key = r.String("id")
			}
			return join("/news", r.String("country"), key)
		},
	}
}

// storiesCategory covers published installments, optionally only those published since the cutoff
func storiesCategory(since *time.Time) category {
	q := db_model.Query{
		Table:   "stories",
		Columns: []string{"slug"},
		Order:   []db_model.OrderBy{{Column: "published_at", Desc: true}, {Column: "slug"}},
	}.Where("status", db_model.OpEq, "published")
	if since != nil {
		q = q.Where("published_at", db_model.OpGte, *since)
	}
	return category{
		name:  "stories",
		query: q,
		paths: func(r db_model.Row) []string {
			return join("/stories", r.String("slug"))
		},
	}
}

// datesCategory emits both alias routes for each publication date; duplicates collapse in the path set
func datesCategory() category {
	return category{
		name: "dates",
		query: db_model.Query{
			Table:   "stories",
			Columns: []string{"story_date"},
			Order:   []db_model.OrderBy{{Column: "story_date"}},
		}.
			Where("status", db_model.OpEq, "published").
			Where("story_date", db_model.OpNotNull, nil),
		paths: func(r db_model.Row) []string {
			d := r.Date("story_date")
			if d == "" {
				return nil
			}
			return []string{"/stories/" + d, "/archive/" + d}
		},
	}
}

func chaptersCategory() category {
	return category{
		name: "chapters",
		query: db_model.Query{
			Table:   "chapters",
			Columns: []string{"volume_slug", "slug"},
			Order:   []db_model.OrderBy{{Column: "volume_slug"}, {Column: "slug"}},
		},
		paths: func(r db_model.Row) []string {
			vol, slug := r.String("volume_slug"), r.String("slug")
			if vol == "" || slug == "" {
				return nil
			}
			return []string{"/volumes/" + vol + "/chapters/" + slug}
		},
	}
}

func volumesCategory() category {
	return category{
		name: "volumes",
		query: db_model.Query{
			Table:   "volumes",
			Columns: []string{"slug"},
			Order:   []db_model.OrderBy{{Column: "slug"}},
		},
		paths: func(r db_model.Row) []string {
			return join("/volumes", r.String("slug"))
		},
	}
}

// entitiesCategory covers the most viewed wiki entities
func entitiesCategory(limit int) category {
	return category{
		name: "entities",
		query: db_model.Query{
			Table:   "wiki_entities",
			Columns: []string{"slug"},
			Order:   []db_model.OrderBy{{Column: "view_count", Desc: true}, {Column: "slug"}},
		},
		limit: limit,
		paths: func(r db_model.Row) []string {
			return join("/wiki", r.String("slug"))
		},
	}
}

// join builds prefix/seg1/seg2..., or nothing when a segment is empty
func join(prefix string, segments ...string) []string {
	p := prefix
	for _, s := range segments {
		if s == "" {
			return nil
		}
		p += "/" + s
	}
	return []string{p}
}
