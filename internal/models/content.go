package models

import "time"

// ContentKind names one of the editorial tables served by the storefront.
type ContentKind string

const (
	ContentArticles          ContentKind = "articles"
	ContentServicePages      ContentKind = "service_pages"
	ContentTestimonials      ContentKind = "testimonials"
	ContentProjects          ContentKind = "projects"
	ContentServiceCategories ContentKind = "service_categories"
	ContentCountyResources   ContentKind = "county_resources"
)

// ContentKinds is the closed set of kinds. The kind doubles as the table name,
// so anything outside this set must never reach a query.
var ContentKinds = []ContentKind{
	ContentArticles,
	ContentServicePages,
	ContentTestimonials,
	ContentProjects,
	ContentServiceCategories,
	ContentCountyResources,
}

func (k ContentKind) Valid() bool {
	for _, v := range ContentKinds {
		if v == k {
			return true
		}
	}
	return false
}

type ContentItem struct {
	ID        string      `json:"id"`
	Kind      ContentKind `json:"kind"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	Summary   string      `json:"summary"`
	Body      string      `json:"body"`
	ImageURL  string      `json:"image_url,omitempty"`
	Published bool        `json:"published"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type ContentInput struct {
	Slug      string `json:"slug" binding:"required"`
	Title     string `json:"title" binding:"required"`
	Summary   string `json:"summary"`
	Body      string `json:"body"`
	ImageURL  string `json:"image_url"`
	Published bool   `json:"published"`
}
