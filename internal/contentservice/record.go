package contentservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/sushihentaime/devlog/internal/common"
	"gopkg.in/yaml.v3"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrBodyFile       = errors.New("body file could not be read")
)

var yamlFrontMatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// record is the on-disk shape of a post. Timestamps stay strings until the
// record has been validated.
type record struct {
	ID             string   `json:"id"`
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Summary        string   `json:"summary"`
	Body           string   `json:"body"`
	BodyIsMarkdown *bool    `json:"bodyIsMarkdown"`
	BodyFile       string   `json:"bodyFile"`
	HeroImage      string   `json:"heroImage"`
	HeroImageAlt   string   `json:"heroImageAlt"`
	Tags           []string `json:"tags"`
	Author         string   `json:"author"`
	AuthorAvatar   string   `json:"authorAvatar"`
	Status         string   `json:"status"`
	PublishedAt    string   `json:"publishedAt"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
	ReadingTime    *float64 `json:"readingTime"`
	ProjectSlug    string   `json:"projectSlug"`
}

type bodyFrontMatter struct {
	HeroImage    string `yaml:"heroImage"`
	HeroImageAlt string `yaml:"heroImageAlt"`
	ProjectSlug  string `yaml:"projectSlug"`
}

// decodePost parses and validates one JSON record found in the directory of
// type dir. The body file, if any, is not read.
func decodePost(data []byte, dir PostType) (*Post, error) {
	var r record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	v := common.NewValidator()
	validateRecord(v, &r, dir)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p := &Post{
		ID:             r.ID,
		Slug:           r.Slug,
		Type:           PostType(r.Type),
		Title:          r.Title,
		Summary:        r.Summary,
		Body:           r.Body,
		BodyIsMarkdown: r.BodyIsMarkdown == nil || *r.BodyIsMarkdown,
		BodyFile:       r.BodyFile,
		HeroImage:      r.HeroImage,
		HeroImageAlt:   r.HeroImageAlt,
		Tags:           r.Tags,
		Author:         r.Author,
		AuthorAvatar:   r.AuthorAvatar,
		Status:         PostStatus(r.Status),
		ProjectSlug:    r.ProjectSlug,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if r.ReadingTime != nil {
		p.ReadingTime = int(math.Ceil(*r.ReadingTime))
	}

	// validated above
	p.PublishedAt, _ = time.Parse(time.RFC3339, r.PublishedAt)
	p.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, r.UpdatedAt)

	return p, nil
}

// resolveBody replaces the inline body with the contents of the post's body
// file and fills a missing reading time.
func resolveBody(fsys fs.FS, p *Post) error {
	if p.BodyFile != "" {
		data, err := fs.ReadFile(fsys, path.Join(string(p.Type), p.BodyFile))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBodyFile, p.BodyFile, err)
		}

		var fm bodyFrontMatter
		rest, err := frontmatter.Parse(bytes.NewReader(data), &fm, yamlFrontMatter)
		if err != nil {
			// not front matter after all, e.g. a leading thematic break
			fm = bodyFrontMatter{}
			rest = data
		}

		if p.HeroImage == "" {
			p.HeroImage = fm.HeroImage
		}
		if p.HeroImageAlt == "" {
			p.HeroImageAlt = fm.HeroImageAlt
		}
		if p.ProjectSlug == "" {
			p.ProjectSlug = fm.ProjectSlug
		}

		p.Body = string(rest)
	}

	if p.ReadingTime == 0 {
		p.ReadingTime = ReadingTime(p.Body)
	}

	return nil
}
