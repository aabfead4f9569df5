package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/sirupsen/logrus"
)

// ValidationConfig configures OpenAPI request validation.
type ValidationConfig struct {
	Enabled        bool   `yaml:"enabled"`
	SpecPath       string `yaml:"spec_path"`
	MaxRequestSize int64  `yaml:"max_request_size"`
}

// Validator checks incoming requests against the OpenAPI document. Routes
// the document does not describe (health, metrics) pass through untouched.
type Validator struct {
	router  routers.Router
	logger  *logrus.Logger
	enabled bool
	maxBody int64
}

// NewValidator loads the OpenAPI document and builds a route matcher for it.
func NewValidator(config ValidationConfig, logger *logrus.Logger) (*Validator, error) {
	v := &Validator{
		logger:  logger,
		enabled: config.Enabled,
		maxBody: config.MaxRequestSize,
	}

	if !config.Enabled {
		logger.Info("OpenAPI request validation disabled")
		return v, nil
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(config.SpecPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec from %s: %w", config.SpecPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI route matcher: %w", err)
	}
	v.router = router

	logger.WithField("spec_path", config.SpecPath).Info("OpenAPI request validation enabled")
	return v, nil
}

// Middleware returns the validation handler wrapper.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	if !v.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.maxBody > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, v.maxBody)
		}

		if err := v.validateRequest(r); err != nil {
			v.logger.WithError(err).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Warn("Request validation failed")

			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSONError(w, status, "validation_error", err.Error(), nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validateRequest matches the request to a documented operation and checks
// parameters and body against its schema.
func (v *Validator) validateRequest(r *http.Request) error {
	route, pathParams, err := v.router.FindRoute(r)
	if err != nil {
		// Operations the document does not describe (health, metrics, docs)
		// pass through unvalidated.
		if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
			return nil
		}
		return fmt.Errorf("route lookup failed: %w", err)
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
	}

	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return fmt.Errorf("request validation failed: %w", err)
	}

	// Hand the handler a fresh reader; validation consumed the copy.
	r.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}
