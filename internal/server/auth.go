package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/httputil"
)

const missingAuthorization = "Missing authorization"

// RequireJWT rejects requests without a valid bearer token with 401. On
// success the token claims are available through RequestContext.Claims.
func RequireJWT(next Handler) Handler {
	return func(rc *RequestContext) {
		token, err := rc.AuthToken()
		if err == nil {
			rc.claims, err = rc.DecodeJWT(token)
		}
		if err != nil {
			rc.Logger().Debug("Rejected unauthorized request",
				zap.String("path", rc.route),
				zap.Error(err))
			httputil.JSONError(rc.RequestCtx, missingAuthorization, fasthttp.StatusUnauthorized)
			return
		}
		next(rc)
	}
}
