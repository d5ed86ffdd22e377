package contentservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sushihentaime/devlog/internal/common"
)

const (
	defaultRelatedLimit  = 3
	defaultFeaturedLimit = 6
	defaultPerPage       = 10
	maxPerPage           = 100
	scanWorkers          = 8
)

// NewContentService serves the records of fsys, which holds one directory per
// post type. A nil cache disables caching.
func NewContentService(fsys fs.FS, c *common.Cache, logger *slog.Logger) *ContentService {
	return &ContentService{
		fsys:    fsys,
		c:       c,
		logger:  logger,
		now:     time.Now,
		workers: scanWorkers,
	}
}

func (s *ContentService) cached(key string) (any, bool) {
	if s.c == nil {
		return nil, false
	}
	return s.c.Get(key)
}

func (s *ContentService) store(key string, value any) {
	if s.c != nil {
		s.c.Set(key, value)
	}
}

// PublishedPost loads a post the public may see. Drafts, archived and
// scheduled posts are reported as not found.
func (s *ContentService) PublishedPost(ctx context.Context, slug string, t PostType) (*Post, error) {
	p, err := s.LoadPost(ctx, slug, t)
	if err != nil {
		return nil, err
	}

	if !p.Visible(s.now()) {
		return nil, ErrRecordNotFound
	}

	return p, nil
}

// GetPublishedPost renders the post PublishedPost returns.
func (s *ContentService) GetPublishedPost(ctx context.Context, slug string, t PostType) (*RenderedPost, error) {
	p, err := s.PublishedPost(ctx, slug, t)
	if err != nil {
		return nil, err
	}

	return RenderPost(p)
}

// RelatedPosts ranks the other published posts of the same type by the number
// of tags they share with p.
func (s *ContentService) RelatedPosts(ctx context.Context, p *Post, limit int) ([]PostMeta, error) {
	if limit < 1 {
		limit = defaultRelatedLimit
	}

	posts, err := s.LoadPosts(ctx, p.Type)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]struct{}, len(p.Tags))
	for _, tag := range p.Tags {
		tags[tag] = struct{}{}
	}

	type scored struct {
		post  PostMeta
		score int
	}

	candidates := make([]scored, 0, len(posts))
	for _, candidate := range posts {
		if candidate.Slug == p.Slug {
			continue
		}

		var score int
		for _, tag := range candidate.Tags {
			if _, ok := tags[tag]; ok {
				score++
			}
		}
		candidates = append(candidates, scored{post: candidate, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	related := make([]PostMeta, 0, len(candidates))
	for _, c := range candidates {
		related = append(related, c.post)
	}

	return related, nil
}

// PaginatedPosts pages through the published posts of t, optionally only
// those carrying tag. Out of range page sizes fall back to the default.
func (s *ContentService) PaginatedPosts(ctx context.Context, t PostType, tag string, page, perPage int) (*PaginatedPosts, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var (
		posts []PostMeta
		err   error
	)
	if tag != "" {
		posts, err = s.PostsByTag(ctx, tag, t)
	} else {
		posts, err = s.LoadPosts(ctx, t)
	}
	if err != nil {
		return nil, err
	}

	total := len(posts)
	offset := (page - 1) * perPage

	pagePosts := []PostMeta{}
	if offset < total {
		end := min(offset+perPage, total)
		pagePosts = posts[offset:end]
	}

	return &PaginatedPosts{
		Posts: pagePosts,
		Pagination: Pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: (total + perPage - 1) / perPage,
		},
	}, nil
}

// FeaturedPosts returns the newest posts across every type.
func (s *ContentService) FeaturedPosts(ctx context.Context, limit int) ([]PostMeta, error) {
	if limit < 1 {
		limit = defaultFeaturedLimit
	}

	posts, err := s.LoadPosts(ctx, "")
	if err != nil {
		return nil, err
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}

	return posts, nil
}

func (s *ContentService) PostsByTag(ctx context.Context, tag string, t PostType) ([]PostMeta, error) {
	posts, err := s.LoadPosts(ctx, t)
	if err != nil {
		return nil, err
	}

	tagged := []PostMeta{}
	for _, p := range posts {
		for _, pt := range p.Tags {
			if pt == tag {
				tagged = append(tagged, p)
				break
			}
		}
	}

	return tagged, nil
}

// AllTags returns the sorted set of tags used by published posts.
func (s *ContentService) AllTags(ctx context.Context, t PostType) ([]string, error) {
	posts, err := s.LoadPosts(ctx, t)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	tags := []string{}
	for _, p := range posts {
		for _, tag := range p.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}

	sort.Strings(tags)
	return tags, nil
}

// Feed builds the syndication feed of every published post. Relative hero
// images are resolved against siteURL.
func (s *ContentService) Feed(ctx context.Context, siteURL string) (*Feed, error) {
	posts, err := s.LoadPosts(ctx, "")
	if err != nil {
		return nil, err
	}

	siteURL = strings.TrimSuffix(siteURL, "/")

	items := make([]FeedItem, 0, len(posts))
	for _, p := range posts {
		item := FeedItem{
			Type:        p.Type,
			Title:       p.Title,
			Slug:        p.Slug,
			URL:         fmt.Sprintf("%s/%s/%s", siteURL, p.Type, p.Slug),
			PublishedAt: p.PublishedAt,
			Excerpt:     p.Summary,
		}

		if p.HeroImage != "" {
			image := &FeedImage{URL: p.HeroImage, Alt: p.HeroImageAlt}
			if !strings.HasPrefix(image.URL, "http") {
				image.URL = siteURL + "/" + strings.TrimPrefix(image.URL, "/")
			}
			if image.Alt == "" {
				image.Alt = p.Title
			}
			item.Image = image
		}

		items = append(items, item)
	}

	return &Feed{
		Items: items,
		Meta: FeedMeta{
			Count:       len(items),
			GeneratedAt: s.now().UTC(),
		},
	}, nil
}

// Check reports every record that would be skipped or fail to load, and slugs
// used more than once within a type. It reads records directly, bypassing
// the cache.
func (s *ContentService) Check(ctx context.Context) ([]Problem, error) {
	problems := []Problem{}

	for _, t := range PostTypes {
		entries, err := s.scan(ctx, t)
		if err != nil {
			return nil, err
		}

		slugs := make(map[string]string)
		for _, e := range entries {
			if e.err != nil {
				problems = append(problems, Problem{Type: t, File: e.file, Message: describe(e.err)})
				continue
			}

			if first, ok := slugs[e.post.Slug]; ok {
				problems = append(problems, Problem{Type: t, File: e.file, Message: fmt.Sprintf("duplicate slug %q, first used by %s", e.post.Slug, first)})
			} else {
				slugs[e.post.Slug] = e.file
			}

			if err := resolveBody(s.fsys, e.post); err != nil {
				problems = append(problems, Problem{Type: t, File: e.file, Message: err.Error()})
			}
		}
	}

	return problems, nil
}

func describe(err error) string {
	var verr common.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}

	fields := make([]string, 0, len(verr.Errors))
	for field, msg := range verr.Errors {
		fields = append(fields, field+" "+msg)
	}
	sort.Strings(fields)

	return strings.Join(fields, "; ")
}
