package main

import (
	"net/http"
	"strconv"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]string{
		"environment":        app.config.Environment,
		"version":            app.config.Version,
		"newsletter_backend": app.config.NewsletterBackend,
	}
	if app.cache != nil {
		info["content_cache_entries"] = strconv.Itoa(app.cache.Len())
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"status": "available", "system_info": info}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
