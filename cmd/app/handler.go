package main

import (
	"errors"
	"net/http"

	"github.com/sushihentaime/devlog/internal/common"
	"github.com/sushihentaime/devlog/internal/contactservice"
	"github.com/sushihentaime/devlog/internal/contentservice"
	"github.com/sushihentaime/devlog/internal/newsletterservice"
)

func (app *application) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()

	page, err := app.readInt(qs, "page", 1)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	perPage, err := app.readInt(qs, "per_page", 0)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	postType := contentservice.PostType(qs.Get("type"))

	result, err := app.content.PaginatedPosts(r.Context(), postType, qs.Get("tag"), page, perPage)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": result.Posts, "pagination": result.Pagination}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) showPostHandler(w http.ResponseWriter, r *http.Request) {
	postType := contentservice.PostType(app.readStringParam(r, "type"))
	slug := app.readStringParam(r, "slug")

	post, err := app.content.GetPublishedPost(r.Context(), slug, postType)
	if err != nil {
		switch {
		case errors.Is(err, contentservice.ErrRecordNotFound), errors.As(err, &common.ValidationError{}):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"post": post}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) relatedPostsHandler(w http.ResponseWriter, r *http.Request) {
	postType := contentservice.PostType(app.readStringParam(r, "type"))
	slug := app.readStringParam(r, "slug")

	limit, err := app.readInt(r.URL.Query(), "limit", 0)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	post, err := app.content.PublishedPost(r.Context(), slug, postType)
	if err != nil {
		switch {
		case errors.Is(err, contentservice.ErrRecordNotFound), errors.As(err, &common.ValidationError{}):
			app.notFoundErrorResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	related, err := app.content.RelatedPosts(r.Context(), post, limit)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": related}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) featuredPostsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := app.readInt(r.URL.Query(), "limit", 0)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	posts, err := app.content.FeaturedPosts(r.Context(), limit)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"posts": posts}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listTagsHandler(w http.ResponseWriter, r *http.Request) {
	postType := contentservice.PostType(r.URL.Query().Get("type"))

	tags, err := app.content.AllTags(r.Context(), postType)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"tags": tags}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// feedHandler serves the public syndication feed, readable from any origin.
func (app *application) feedHandler(w http.ResponseWriter, r *http.Request) {
	feed, err := app.content.Feed(r.Context(), app.config.SiteURL)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Cache-Control", "public, max-age=300, stale-while-revalidate=600")

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET")

	err = app.writeJSON(w, http.StatusOK, envelope{"items": feed.Items, "meta": feed.Meta}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type newsletterSignupRequest struct {
	Email   string `json:"email"`
	Consent bool   `json:"consent"`
	Source  string `json:"source"`
	Path    string `json:"path"`
}

func (app *application) newsletterSignupHandler(w http.ResponseWriter, r *http.Request) {
	var input newsletterSignupRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	result, err := app.newsletter.Signup(r.Context(), newsletterservice.SignupInput{
		Email:     input.Email,
		Consent:   input.Consent,
		Source:    input.Source,
		Path:      input.Path,
		UserAgent: r.UserAgent(),
		IP:        app.clientIP(r),
	})
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		case errors.Is(err, newsletterservice.ErrDeliveryFailed):
			app.deliveryFailedResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": result.Message, "status": result.Status}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) newsletterConfirmHandler(w http.ResponseWriter, r *http.Request) {
	result, err := app.newsletter.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		app.newsletterTokenError(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": result.Message, "status": result.Status}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) newsletterUnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	result, err := app.newsletter.Unsubscribe(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		app.newsletterTokenError(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": result.Message, "status": result.Status}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) newsletterTokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, newsletterservice.ErrInvalidToken):
		app.invalidTokenResponse(w, r, err)
	case errors.As(err, &common.ValidationError{}):
		validationErr := err.(common.ValidationError)
		app.failedValidationErrorResponse(w, r, validationErr.Errors)
	default:
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listSubscribersHandler(w http.ResponseWriter, r *http.Request) {
	status := newsletterservice.Status(r.URL.Query().Get("status"))

	records, err := app.newsletter.Subscribers(r.Context(), status)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"subscribers": records, "count": len(records)}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) contactHandler(w http.ResponseWriter, r *http.Request) {
	var input contactservice.Submission

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestErrorResponse(w, r, err)
		return
	}

	result, err := app.contact.Submit(r.Context(), input)
	if err != nil {
		switch {
		case errors.As(err, &common.ValidationError{}):
			validationErr := err.(common.ValidationError)
			app.failedValidationErrorResponse(w, r, validationErr.Errors)
		case errors.Is(err, contactservice.ErrDeliveryFailed):
			app.deliveryFailedResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": result.Message}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
