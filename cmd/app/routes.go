package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundErrorResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedErrorResponse)

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthCheckHandler)

	// content
	router.HandlerFunc(http.MethodGet, "/v1/posts", app.listPostsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/posts/:type/:slug", app.showPostHandler)
	router.HandlerFunc(http.MethodGet, "/v1/posts/:type/:slug/related", app.relatedPostsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/featured", app.featuredPostsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/tags", app.listTagsHandler)
	router.HandlerFunc(http.MethodGet, "/v1/feed", app.feedHandler)

	// newsletter
	router.HandlerFunc(http.MethodPost, "/v1/newsletter/signup", app.newsletterSignupHandler)
	router.HandlerFunc(http.MethodGet, "/v1/newsletter/confirm", app.newsletterConfirmHandler)
	router.HandlerFunc(http.MethodGet, "/v1/newsletter/unsubscribe", app.newsletterUnsubscribeHandler)
	router.HandlerFunc(http.MethodGet, "/v1/newsletter/subscribers", app.requireAdmin(app.listSubscribersHandler))

	// contact
	router.HandlerFunc(http.MethodPost, "/v1/contact", app.contactHandler)

	return app.recoverPanic(app.logRequest(app.enableCORS(app.rateLimit(router))))
}
