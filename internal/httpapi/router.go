package httpapi

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
)

// Router assembles the hertz engine over a Handler. JWT is optional:
// a nil auth leaves every route open, matching a single-operator
// local run; setting one via SetAuth gates every /run* route behind
// a bearer token obtained from POST /login.
type Router struct {
	handler *Handler
	auth    *JWTAuth
}

// NewRouter builds a Router over handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// SetAuth enables JWT bearer-token auth on every /run* route.
func (r *Router) SetAuth(auth *JWTAuth) {
	r.auth = auth
}

func (r *Router) chain(final app.HandlerFunc) []app.HandlerFunc {
	if r.auth == nil {
		return []app.HandlerFunc{final}
	}
	return []app.HandlerFunc{r.auth.RequireAuth(), final}
}

// Build constructs the hertz engine and registers every spec §6 route.
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	allOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(allOpts...)

	h.Use(AccessLog())
	h.Use(CORS())

	h.GET("/health", r.handler.HealthCheck)
	if r.auth != nil {
		h.POST("/login", r.auth.LoginHandler())
	}

	h.POST("/run", r.chain(r.handler.CreateRun)...)
	h.GET("/run/:id", r.chain(r.handler.GetRun)...)
	h.GET("/run/:id/progress", r.chain(r.handler.GetProgress)...)
	h.GET("/run/:id/artifacts/:name", r.chain(r.handler.GetArtifact)...)
	h.GET("/run/:id/test/:scenario_id/:kind", r.chain(r.handler.GetTestArtifact)...)
	h.GET("/run/:id/screenshot/:filename", r.chain(r.handler.GetScreenshot)...)
	h.GET("/run/:id/report", r.chain(r.handler.GetReport)...)
	h.DELETE("/run/:id", r.chain(r.handler.DeleteRun)...)

	h.GET("/runs", r.chain(r.handler.ListRuns)...)
	h.DELETE("/runs", r.chain(r.handler.DeleteRuns)...)

	return h
}
