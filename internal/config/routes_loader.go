package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Routes maps a gateway api name (e.g. "pay.pay") to its request path.
type Routes map[string]string

// DefaultRoutes holds the merchant paths the gateway publishes. pay.openid has
// no published path and must be supplied through VIPSPT_ROUTES_PATH.
func DefaultRoutes() Routes {
	return Routes{
		"pay.pay":         "/payOpen/bToC",
		"pay.query":       "/payOpen/query.do",
		"pay.refund":      "/payOpen/refund.do",
		"pay.refundQuery": "/payOpen/query.do",
	}
}

type routesFile struct {
	Routes map[string]string `yaml:"routes"`
}

// LoadRoutes returns the default table overlaid with the entries in path.
// An empty path yields the defaults.
func LoadRoutes(path string) (Routes, error) {
	routes := DefaultRoutes()
	if path == "" {
		return routes, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}

	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}

	for name, p := range f.Routes {
		if p == "" {
			delete(routes, name)
			continue
		}
		routes[name] = p
	}
	return routes, nil
}

func (r Routes) Path(apiName string) (string, bool) {
	p, ok := r[apiName]
	return p, ok
}
