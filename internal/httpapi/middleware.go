package httpapi

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/jwt"
)

// CORS allows any origin — the API is consumed by a local TUI/CLI and
// scripted clients, never a cross-origin browser session carrying
// cookies.
func CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if string(c.Method()) == "OPTIONS" {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

// AccessLog logs method, path, and status for every request.
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		hlog.CtxInfof(ctx, "%s %s %d %s", c.Method(), c.Path(), c.Response.StatusCode(), time.Since(start))
	}
}

// apiUser is the JWT identity payload: a caller name, nothing more —
// this API authorizes "is this caller allowed to drive probe at all,"
// not per-resource roles.
type apiUser struct {
	Name string
}

// JWTAuth wraps hertz-contrib/jwt for the optional bearer-token mode.
// A nil *JWTAuth means the router runs unauthenticated, the default
// for local/CI use.
type JWTAuth struct {
	mw *jwt.HertzJWTMiddleware
}

// NewJWTAuth builds a JWTAuth that accepts any non-empty username
// whose password matches expectedPassword — probe has one operator
// identity, not a user directory.
func NewJWTAuth(signingKey []byte, expectedPassword string, timeout time.Duration) (*JWTAuth, error) {
	const identityKey = "name"
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "probe-api",
		Key:         signingKey,
		Timeout:     timeout,
		MaxRefresh:  timeout,
		IdentityKey: identityKey,
		PayloadFunc: func(data any) jwt.MapClaims {
			if u, ok := data.(*apiUser); ok {
				return jwt.MapClaims{identityKey: u.Name}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) any {
			claims := jwt.ExtractClaims(ctx, c)
			name, _ := claims[identityKey].(string)
			return &apiUser{Name: name}
		},
		Authenticator: func(ctx context.Context, c *app.RequestContext) (any, error) {
			var login struct {
				Name     string `json:"name"`
				Password string `json:"password"`
			}
			if err := c.BindJSON(&login); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}
			if login.Name == "" || login.Password != expectedPassword {
				return nil, jwt.ErrFailedAuthentication
			}
			return &apiUser{Name: login.Name}, nil
		},
		Authorizator: func(data any, ctx context.Context, c *app.RequestContext) bool {
			return data != nil
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]any{"error": message})
		},
	})
	if err != nil {
		return nil, err
	}
	if err := mw.MiddlewareInit(); err != nil {
		return nil, err
	}
	return &JWTAuth{mw: mw}, nil
}

// LoginHandler returns the POST /login handler.
func (j *JWTAuth) LoginHandler() app.HandlerFunc { return j.mw.LoginHandler }

// RequireAuth returns the bearer-token verification middleware.
func (j *JWTAuth) RequireAuth() app.HandlerFunc { return j.mw.MiddlewareFunc() }
