package transporthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthbridge/go-medscheme/internal/http/handlers"
	"github.com/healthbridge/go-medscheme/internal/middleware"
)

// Deps bundles the middleware chain and the feature handlers that
// implement handlers.Mountable.
type Deps struct {
	Middlewares []func(http.Handler) http.Handler
	Mounts      []handlers.Mountable
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	for _, mw := range d.Middlewares {
		r.Use(mw)
	}
	r.Use(middleware.SetJSONContentType)

	// Mount each feature's routes into this router.
	for _, m := range d.Mounts {
		m.Mount(r)
	}

	return r
}
