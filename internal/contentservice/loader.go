package contentservice

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/sushihentaime/devlog/internal/common"
	"golang.org/x/sync/errgroup"
)

// entry is the outcome of decoding one JSON record of a directory scan.
type entry struct {
	file string
	post *Post
	err  error
}

// listRecords returns the JSON record names of a type directory in name
// order. A missing or unreadable directory yields no records.
func (s *ContentService) listRecords(t PostType) []string {
	dirEntries, err := fs.ReadDir(s.fsys, string(t))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("could not read content directory", slog.String("type", string(t)), slog.String("error", err.Error()))
		}
		return nil
	}

	var names []string
	for _, d := range dirEntries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			continue
		}
		names = append(names, d.Name())
	}

	return names
}

// scan decodes every record of a type in parallel. Entries keep directory
// order; per-record failures are reported in the entry, not as an error.
func (s *ContentService) scan(ctx context.Context, t PostType) ([]entry, error) {
	names := s.listRecords(t)
	entries := make([]entry, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			entries[i].file = name

			data, err := fs.ReadFile(s.fsys, path.Join(string(t), name))
			if err != nil {
				entries[i].err = err
				return nil
			}

			entries[i].post, entries[i].err = decodePost(data, t)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *ContentService) skip(t PostType, file string, err error) {
	s.logger.Warn("skipping content record", slog.String("type", string(t)), slog.String("file", file), slog.String("error", err.Error()))
}

// LoadPost returns the first record of type t whose slug matches, whatever
// its status. A post whose body file cannot be read is an error wrapping
// ErrBodyFile.
func (s *ContentService) LoadPost(ctx context.Context, slug string, t PostType) (*Post, error) {
	v := common.NewValidator()
	validateType(v, t)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	key := common.CacheKeyPost(string(t), slug)
	if p, ok := s.cached(key); ok {
		post := p.(Post)
		return &post, nil
	}

	entries, err := s.scan(ctx, t)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.err != nil {
			s.skip(t, e.file, e.err)
			continue
		}
		if e.post.Slug != slug {
			continue
		}

		if err := resolveBody(s.fsys, e.post); err != nil {
			return nil, err
		}

		s.store(key, *e.post)
		return e.post, nil
	}

	return nil, ErrRecordNotFound
}

// LoadPosts returns the publicly visible posts of type t, or of every type
// when t is empty, newest first. Posts published at the same instant keep
// scan order.
func (s *ContentService) LoadPosts(ctx context.Context, t PostType) ([]PostMeta, error) {
	types := PostTypes
	if t != "" {
		v := common.NewValidator()
		validateType(v, t)
		if !v.Valid() {
			return nil, v.ValidationError()
		}
		types = []PostType{t}
	}

	key := common.CacheKeyPosts(string(t))
	metas, ok := s.cachedListing(key)
	if !ok {
		var err error
		metas, err = s.scanPublished(ctx, types)
		if err != nil {
			return nil, err
		}
		s.store(key, metas)
	}

	now := s.now()
	visible := make([]PostMeta, 0, len(metas))
	for _, m := range metas {
		if m.Visible(now) {
			visible = append(visible, m)
		}
	}

	return visible, nil
}

func (s *ContentService) cachedListing(key string) ([]PostMeta, bool) {
	p, ok := s.cached(key)
	if !ok {
		return nil, false
	}
	return p.([]PostMeta), true
}

// scanPublished collects every published post of types, scheduled ones
// included, newest first. Visibility is decided per call so cached listings
// pick up scheduled posts once their time comes.
func (s *ContentService) scanPublished(ctx context.Context, types []PostType) ([]PostMeta, error) {
	var posts []*Post

	for _, pt := range types {
		entries, err := s.scan(ctx, pt)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if e.err != nil {
				s.skip(pt, e.file, e.err)
				continue
			}
			if e.post.Status != PostStatusPublished {
				continue
			}
			if err := resolveBody(s.fsys, e.post); err != nil {
				s.skip(pt, e.file, err)
				continue
			}
			posts = append(posts, e.post)
		}
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})

	metas := make([]PostMeta, 0, len(posts))
	for _, p := range posts {
		metas = append(metas, p.Meta())
	}

	return metas, nil
}
