package server

import (
	"net/http"

	"github.com/justinas/alice"
)

var _ Router = (*BasicRouter)(nil)

// BasicRouter is the [Router] behind the OAuth callback server.
//
// Routes live on an [http.ServeMux] using method patterns, so a request with the wrong method
// gets a 405 from the mux itself. Middleware is composed with [alice.Chain].
type BasicRouter struct {
	mux   *http.ServeMux
	chain alice.Chain
}

// NewBasicRouter returns a router with no routes and no middleware.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux(), chain: alice.New()}
}

// Use appends middleware; the first added is the outermost.
//
// Routes registered before a call to Use are not wrapped by it.
func (r *BasicRouter) Use(middleware ...Middleware) {
	for _, mw := range middleware {
		r.chain = r.chain.Append(alice.Constructor(mw))
	}
}

// Handle registers handler for method and path.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Handle(method+" "+path, r.Apply(handler))
}

// Handler registers every route a [Handler] reports, answering GET only.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(http.MethodGet+" "+route, wrapped)
	}
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler with the middleware registered so far.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	return r.chain.Then(handler)
}
