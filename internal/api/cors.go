package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/fueltrackr/fueltrackr-api/internal/config"
)

// allMethods is what a "*" entry in AllowedMethods stands for.
var allMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// CORS builds the cross-origin middleware for policy. An origin is accepted
// when it equals one of AllowedOrigins or matches AllowedOriginPattern in full;
// any other origin gets no Access-Control-* headers and the browser blocks it.
func CORS(policy config.CORS, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	pattern, err := policy.OriginPattern()
	if err != nil {
		return nil, err
	}

	exact := make(map[string]struct{}, len(policy.AllowedOrigins))
	allowAny := false
	for _, origin := range policy.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAny = true
			continue
		}
		exact[origin] = struct{}{}
	}

	opts := cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if allowAny {
				return true
			}
			if _, ok := exact[origin]; ok {
				return true
			}
			return pattern != nil && pattern.MatchString(origin)
		},
		AllowedMethods:   expandMethods(policy.AllowedMethods),
		AllowedHeaders:   policy.AllowedHeaders,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: policy.AllowCredentials,
		MaxAge:           int(policy.MaxAge / time.Second),
		Debug:            policy.Debug,
	}
	if policy.Debug && logger != nil {
		opts.Logger = zap.NewStdLog(logger.Named("cors"))
	}

	return cors.New(opts).Handler, nil
}

func expandMethods(methods []string) []string {
	if len(methods) == 0 || slices.Contains(methods, "*") {
		return allMethods
	}
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, strings.ToUpper(strings.TrimSpace(m)))
	}
	return out
}
