package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar is implemented by handlers that add their own routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts handlers under /api/<version>. Ledger handlers run behind
// the tenant middleware; system handlers live under /system without it.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	ledger     mount
	system     mount
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix, v1 by default
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

// WithTenantMiddleware adds middleware in front of every ledger route
func WithTenantMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.ledger.middleware = append(r.ledger.middleware, mw...) }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		system:     mount{prefix: "/system"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tenant scoped handler
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.ledger.registrars = append(r.ledger.registrars, registrar)
	return r
}

// RegisterSystem adds a handler serving cross-tenant operator routes
func (r *Router) RegisterSystem(registrar RouteRegistrar) *Router {
	r.system.registrars = append(r.system.registrars, registrar)
	return r
}

// Setup adds every registered route to the engine. Call it once.
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	r.system.apply(api)
	r.ledger.apply(api)
}

// mount is a set of registrars sharing a prefix and middleware
type mount struct {
	prefix     string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

func (m mount) apply(parent *gin.RouterGroup) {
	if len(m.registrars) == 0 {
		return
	}
	group := parent.Group(m.prefix, m.middleware...)
	for _, registrar := range m.registrars {
		registrar.RegisterRoutes(group)
	}
}
