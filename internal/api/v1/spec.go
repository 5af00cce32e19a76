package apiv1

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// LoadSpec reads the OpenAPI document at path and validates it.
func LoadSpec(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

var routeParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// specPath turns a fiber route path like /users/:id into /users/{id}.
func specPath(route, prefix string) string {
	p := strings.TrimPrefix(route, prefix)
	if p == "" {
		p = "/"
	}
	return routeParam.ReplaceAllString(p, "{$1}")
}

// CompareRoutes reports routes under prefix that the document does not
// describe and documented operations that have no route. Entries look like
// "GET /admin/users".
func CompareRoutes(doc *openapi3.T, routes []fiber.Route, prefix string) (undocumented, unrouted []string) {
	routed := map[string]bool{}
	for _, r := range routes {
		if r.Method == fiber.MethodHead || !strings.HasPrefix(r.Path, prefix+"/") {
			continue
		}
		path := specPath(r.Path, prefix)
		key := r.Method + " " + path
		if routed[key] {
			continue
		}
		routed[key] = true

		item := doc.Paths.Value(path)
		if item == nil || item.GetOperation(r.Method) == nil {
			undocumented = append(undocumented, key)
		}
	}

	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			key := strings.ToUpper(method) + " " + path
			if !routed[key] {
				unrouted = append(unrouted, key)
			}
		}
	}

	sort.Strings(undocumented)
	sort.Strings(unrouted)
	return undocumented, unrouted
}
