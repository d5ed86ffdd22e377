package contentservice

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/sushihentaime/devlog/internal/common"
)

type PostType string

const (
	PostTypeBlog PostType = "blog"
	PostTypeNews PostType = "news"
)

// PostTypes lists every content type in scan order.
var PostTypes = []PostType{PostTypeBlog, PostTypeNews}

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

type Post struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug"`
	Type           PostType   `json:"type"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	Body           string     `json:"body"`
	BodyIsMarkdown bool       `json:"bodyIsMarkdown"`
	BodyFile       string     `json:"bodyFile,omitempty"`
	HeroImage      string     `json:"heroImage,omitempty"`
	HeroImageAlt   string     `json:"heroImageAlt,omitempty"`
	Tags           []string   `json:"tags"`
	Author         string     `json:"author"`
	AuthorAvatar   string     `json:"authorAvatar,omitempty"`
	Status         PostStatus `json:"status"`
	PublishedAt    time.Time  `json:"publishedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ReadingTime    int        `json:"readingTime,omitempty"`
	ProjectSlug    string     `json:"projectSlug,omitempty"`
}

// PostMeta is a Post without its body, as served in listings.
type PostMeta struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	Type         PostType   `json:"type"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	HeroImage    string     `json:"heroImage,omitempty"`
	HeroImageAlt string     `json:"heroImageAlt,omitempty"`
	Tags         []string   `json:"tags"`
	Author       string     `json:"author"`
	AuthorAvatar string     `json:"authorAvatar,omitempty"`
	Status       PostStatus `json:"status"`
	PublishedAt  time.Time  `json:"publishedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ReadingTime  int        `json:"readingTime"`
	ProjectSlug  string     `json:"projectSlug,omitempty"`
}

type PostCodeBlock struct {
	Language string `json:"language"`
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

type RenderedPost struct {
	Post       *Post           `json:"post"`
	HTML       string          `json:"html"`
	CodeBlocks []PostCodeBlock `json:"codeBlocks"`
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type PaginatedPosts struct {
	Posts      []PostMeta `json:"posts"`
	Pagination Pagination `json:"pagination"`
}

type FeedImage struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type FeedItem struct {
	Type        PostType   `json:"type"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	URL         string     `json:"url"`
	PublishedAt time.Time  `json:"publishedAt"`
	Excerpt     string     `json:"excerpt"`
	Image       *FeedImage `json:"image,omitempty"`
}

type FeedMeta struct {
	Count       int       `json:"count"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Feed struct {
	Items []FeedItem `json:"items"`
	Meta  FeedMeta   `json:"meta"`
}

// Problem describes one content record that cannot be served.
type Problem struct {
	Type    PostType `json:"type"`
	File    string   `json:"file"`
	Message string   `json:"message"`
}

type ContentService struct {
	fsys    fs.FS
	c       *common.Cache
	logger  *slog.Logger
	now     func() time.Time
	workers int
}

// Visible reports whether the post may be shown to the public at t.
func (p *Post) Visible(t time.Time) bool {
	return p.Status == PostStatusPublished && !p.PublishedAt.After(t)
}

func (m PostMeta) Visible(t time.Time) bool {
	return m.Status == PostStatusPublished && !m.PublishedAt.After(t)
}

func (p *Post) Meta() PostMeta {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	readingTime := p.ReadingTime
	if readingTime == 0 {
		readingTime = ReadingTime(p.Body)
	}

	return PostMeta{
		ID:           p.ID,
		Slug:         p.Slug,
		Type:         p.Type,
		Title:        p.Title,
		Summary:      p.Summary,
		HeroImage:    p.HeroImage,
		HeroImageAlt: p.HeroImageAlt,
		Tags:         tags,
		Author:       p.Author,
		AuthorAvatar: p.AuthorAvatar,
		Status:       p.Status,
		PublishedAt:  p.PublishedAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		ReadingTime:  readingTime,
		ProjectSlug:  p.ProjectSlug,
	}
}
