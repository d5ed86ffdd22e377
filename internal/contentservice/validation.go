package contentservice

import (
	"io/fs"
	"strings"

	"github.com/sushihentaime/devlog/internal/common"
)

func validateType(v *common.Validator, t PostType) {
	v.Check(common.PermittedValue(t, PostTypes...), "type", "must be one of blog or news")
}

func validateSlug(v *common.Validator, slug string) {
	v.Check(slug != "", "slug", "must be provided")
	v.Check(common.SlugRX.MatchString(slug), "slug", "must be lowercase alphanumeric with hyphens")
}

// validateRecord checks a decoded record against the post schema. dir is the
// type whose directory the record was found in.
func validateRecord(v *common.Validator, r *record, dir PostType) {
	v.Check(r.ID != "", "id", "must be provided")
	validateSlug(v, r.Slug)

	v.Check(r.Title != "", "title", "must be provided")
	v.Check(v.CheckStringLength(r.Title, 1, 200), "title", "must not be more than 200 characters long")

	validateType(v, PostType(r.Type))
	v.Check(PostType(r.Type) == dir, "type", "must match the content directory")

	v.Check(r.Summary != "", "summary", "must be provided")
	v.Check(v.CheckStringLength(r.Summary, 1, 500), "summary", "must not be more than 500 characters long")

	v.Check(r.Body != "" || r.BodyFile != "", "body", "must be provided")
	if r.BodyFile != "" {
		v.Check(fs.ValidPath(r.BodyFile) && !strings.Contains(r.BodyFile, "/"), "bodyFile", "must be a file name in the same directory")
	}

	if r.HeroImage != "" {
		v.Check(common.IsURL(r.HeroImage) || strings.HasPrefix(r.HeroImage, "/"), "heroImage", "must be a URL or a site path")
	}
	if r.AuthorAvatar != "" {
		v.Check(common.IsURL(r.AuthorAvatar), "authorAvatar", "must be a URL")
	}

	for _, tag := range r.Tags {
		v.Check(strings.TrimSpace(tag) != "", "tags", "must not contain empty tags")
	}

	v.Check(r.Author != "", "author", "must be provided")
	v.Check(common.PermittedValue(PostStatus(r.Status), PostStatusDraft, PostStatusPublished, PostStatusArchived), "status", "must be one of draft, published or archived")

	v.Check(common.IsDateTime(r.PublishedAt), "publishedAt", "must be an RFC 3339 date-time")
	v.Check(common.IsDateTime(r.CreatedAt), "createdAt", "must be an RFC 3339 date-time")
	v.Check(common.IsDateTime(r.UpdatedAt), "updatedAt", "must be an RFC 3339 date-time")

	if r.ReadingTime != nil {
		v.Check(*r.ReadingTime > 0, "readingTime", "must be greater than zero")
	}
}
