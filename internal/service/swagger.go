package service

import (
	"net/http"

	docsPkg "github.com/onexay/objstore/docs"
)

const (
	swaggerRoot     = apiPrefix + "/swagger/"
	openAPIDocument = swaggerRoot + "openapi.yaml"
)

// swaggerPage loads Swagger UI from the public CDN and points it at the
// embedded document by absolute path.
const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>objstore REST API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="api-docs"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: "` + openAPIDocument + `", dom_id: "#api-docs", docExpansion: "list"});
</script>
</body>
</html>
`

func (s *Service) handleSwagger(w http.ResponseWriter, r *http.Request, tail string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	switch tail {
	case "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(swaggerPage))
	case "openapi.yaml":
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(docsPkg.OpenAPI)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown document " + tail})
	}
}
