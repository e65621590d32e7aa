package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// findOpenAPISpec locates api/openapi.yaml by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the document and checks it covers every route.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/maps",
		"/v1/maps/{id}",
		"/v1/maps/{id}/zoom-in",
		"/v1/maps/{id}/zoom-out",
		"/v1/maps/{id}/reset",
		"/v1/maps/{id}/pan",
		"/v1/maps/{id}/layer",
		"/v1/maps/{id}/selection",
		"/v1/maps/{id}/geojson",
		"/v1/entities",
		"/v1/system/health",
		"/v1/system/health/refresh",
		"/v1/system/events",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	expectedSchemas := []string{
		"MapConfig",
		"MapView",
		"ViewportState",
		"Marker",
		"GeoEntity",
		"EntityDetail",
		"MetricsSnapshot",
		"HealthView",
		"SystemEvent",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPILayerEnum keeps the documented layers in step with the domain.
func TestOpenAPILayerEnum(t *testing.T) {
	spec := loadSpec(t)
	layer := spec.Components.Schemas["Layer"]
	if layer == nil || layer.Value == nil {
		t.Fatal("Layer schema missing")
	}
	want := map[string]bool{"standard": true, "satellite": true, "terrain": true}
	if len(layer.Value.Enum) != len(want) {
		t.Fatalf("expected %d layers, got %v", len(want), layer.Value.Enum)
	}
	for _, v := range layer.Value.Enum {
		if !want[v.(string)] {
			t.Errorf("unexpected layer %v", v)
		}
	}
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadSpec(t)

	if spec.Info.Title != "SafeMap API" {
		t.Errorf("expected title 'SafeMap API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(spec.Servers) == 0 {
		t.Fatal("expected at least one server")
	}
	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}
