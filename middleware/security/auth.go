package security

import (
	"net/http"
	"strings"

	"RPChat/tools/errs"
	sec "RPChat/tools/security"

	"github.com/gin-gonic/gin"
)

// Context keys set for downstream handlers.
const (
	PPCtxAuthKey    = "authorization" // raw token
	PPCtxSubjectKey = "authSubject"   // verified "sub" claim
)

type Options struct {
	JWT   sec.Options
	Scope string // required scope, empty means any valid token

	// HeaderToken is read before the Authorization bearer header.
	HeaderToken string
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:         sec.DefaultOptions(secret),
		Scope:       sec.ScopeAdmin,
		HeaderToken: "X-Auth-Token",
	}
}

// Middleware rejects requests without a valid token carrying opts.Scope.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		if token == "" {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > 7 &&
				strings.EqualFold(authz[:7], "bearer ") {
				token = strings.TrimSpace(authz[7:])
			}
		}
		if token == "" {
			abort(c, errs.ErrUnauthorized.WrapMsg("missing token"))
			return
		}

		claims, err := sec.Verify(opts.JWT, token)
		if err != nil {
			abort(c, errs.ErrUnauthorized.WrapMsg("invalid token"))
			return
		}
		if opts.Scope != "" && !claims.HasScope(opts.Scope) {
			abort(c, errs.ErrUnauthorized.WrapMsg("missing scope", "scope", opts.Scope))
			return
		}

		c.Set(PPCtxAuthKey, token)
		c.Set(PPCtxSubjectKey, claims.Subject())
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	ce := errs.AsCode(err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": ce.WireCode(), "msg": ce.Message()})
}
