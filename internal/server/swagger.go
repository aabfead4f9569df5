package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"
)

// setupDocsRoutes wires the OpenAPI document and the Swagger UI shell.
func (s *Server) setupDocsRoutes(r *mux.Router) {
	r.HandleFunc("/docs/openapi.yaml", s.handleOpenAPISpec).Methods(http.MethodGet)
	r.HandleFunc("/docs/openapi.json", s.handleOpenAPISpec).Methods(http.MethodGet)

	r.HandleFunc("/docs", s.handleDocsIndex).Methods(http.MethodGet)
	r.HandleFunc("/docs/", s.handleDocsIndex).Methods(http.MethodGet)
}

// specPath resolves the OpenAPI document location. The validation middleware
// and the docs endpoint serve the same file.
func (s *Server) specPath() string {
	if s.config.Validation.SpecPath != "" {
		return s.config.Validation.SpecPath
	}
	return filepath.Join("docs", "openapi.yaml")
}

// handleOpenAPISpec serves the OpenAPI document as YAML or JSON.
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	path := s.specPath()

	if strings.HasSuffix(r.URL.Path, ".json") {
		yamlData, err := os.ReadFile(path)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "not_found", "OpenAPI spec not found")
			return
		}

		var spec interface{}
		if err := yaml.Unmarshal(yamlData, &spec); err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal_error", "Error parsing OpenAPI spec")
			return
		}

		jsonData, err := json.MarshalIndent(jsonCompatible(spec), "", "  ")
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal_error", "Error converting spec to JSON")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	http.ServeFile(w, r, path)
}

// jsonCompatible rewrites the yaml.v2 interface-keyed maps into string-keyed
// ones so encoding/json can marshal them.
func jsonCompatible(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprintf("%v", k)] = jsonCompatible(item)
		}
		return m
	case []interface{}:
		for i, item := range val {
			val[i] = jsonCompatible(item)
		}
		return val
	default:
		return v
	}
}

// handleDocsIndex serves the Swagger UI shell pointed at the served spec.
func (s *Server) handleDocsIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	specURL := fmt.Sprintf("%s/docs/openapi.yaml", getBaseURL(r))

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>LLM Dispatch - API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
    <style>
        html {
            box-sizing: border-box;
            overflow: -moz-scrollbars-vertical;
            overflow-y: scroll;
        }
        *, *:before, *:after {
            box-sizing: inherit;
        }
        body {
            margin:0;
            background: #fafafa;
        }
        .swagger-ui .topbar { display: none; }
        .custom-header {
            background: #1f2937;
            color: white;
            padding: 1rem 2rem;
            margin-bottom: 2rem;
        }
        .custom-header h1 {
            margin: 0;
            font-size: 1.5rem;
        }
        .custom-header p {
            margin: 0.5rem 0 0 0;
            opacity: 0.8;
        }
    </style>
</head>
<body>
    <div class="custom-header">
        <h1>LLM Dispatch API Documentation</h1>
        <p>Privacy-aware dispatch between local and remote LLM backends</p>
    </div>
    <div id="swagger-ui"></div>

    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-standalone-preset.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '%s',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIStandalonePreset
                ],
                plugins: [
                    SwaggerUIBundle.plugins.DownloadUrl
                ],
                layout: "StandaloneLayout",
                defaultModelsExpandDepth: 0,
                defaultModelExpandDepth: 3,
                docExpansion: "list",
                filter: true,
                supportedSubmitMethods: ['get', 'post'],
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`, specURL)

	w.Write([]byte(html))
}

// getBaseURL extracts the base URL from the request, honoring forwarded
// headers set by a reverse proxy.
func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwardedProto := r.Header.Get("X-Forwarded-Proto"); forwardedProto != "" {
		scheme = forwardedProto
	}

	host := r.Host
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
		host = forwardedHost
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}
