package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidation validates requests against the OpenAPI document before
// they reach the handlers. Requests for paths outside the document pass
// through untouched.
func OpenAPIValidation(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
					next.ServeHTTP(w, r)
					return
				}
				logger.Error("failed to match route for validation", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			// The validator consumes the body; restore it for the handler.
			var bodyCopy []byte
			if r.Body != nil {
				bodyCopy, err = io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, "failed to read request body", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyCopy))
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					MultiError: false,
				},
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				var reqErr *openapi3filter.RequestError
				message := "request does not match the API schema"
				if errors.As(err, &reqErr) {
					message = reqErr.Error()
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				//nolint:errcheck // Best effort response writing
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "validation_failed",
					"message": message,
				})
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(bodyCopy))
			next.ServeHTTP(w, r)
		})
	}, nil
}
