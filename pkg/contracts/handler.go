package contracts

import "github.com/julienschmidt/httprouter"

// Handler registers request/response routes. They run behind the full
// middleware chain including the request timeout.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// StreamHandler registers long-lived routes that must not be cut off by the
// request timeout.
type StreamHandler interface {
	RegisterStreamRoutes(*httprouter.Router)
}
