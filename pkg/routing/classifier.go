// Package routing classifies request paths so cross-cutting middleware can
// pick between HTML and JSON responses.
package routing

import (
	"sort"
	"strings"
)

type RouteClass string

const (
	RouteClassUI        RouteClass = "ui"
	RouteClassAPI       RouteClass = "api"
	RouteClassOData     RouteClass = "odata"
	RouteClassWebsocket RouteClass = "websocket"
	RouteClassOps       RouteClass = "ops"
	RouteClassAsset     RouteClass = "asset"
)

type Rule struct {
	Prefix string
	Class  RouteClass
}

// DefaultRules is the portal's route layout.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/api", Class: RouteClassAPI},
		{Prefix: "/odata", Class: RouteClassOData},
		{Prefix: "/ws", Class: RouteClassWebsocket},
		{Prefix: "/health", Class: RouteClassOps},
		{Prefix: "/debug", Class: RouteClassOps},
		{Prefix: "/assets", Class: RouteClassAsset},
	}
}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	copied := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		rule.Prefix = strings.TrimSpace(rule.Prefix)
		if rule.Prefix == "" {
			continue
		}
		copied = append(copied, rule)
	}

	sort.SliceStable(copied, func(i, j int) bool {
		return len(copied[i].Prefix) > len(copied[j].Prefix)
	})

	return &Classifier{
		rules: copied,
	}
}

func (c *Classifier) ClassifyPath(path string) RouteClass {
	for _, rule := range c.rules {
		if HasPathPrefixOnBoundary(path, rule.Prefix) {
			return rule.Class
		}
	}
	return RouteClassUI
}

// WantsJSON reports whether errors on path should be rendered as the JSON envelope.
func (c *Classifier) WantsJSON(path string) bool {
	switch c.ClassifyPath(path) {
	case RouteClassAPI, RouteClassOData, RouteClassOps:
		return true
	default:
		return false
	}
}

func HasPathPrefixOnBoundary(path, prefix string) bool {
	if prefix == "" {
		return false
	}

	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}

	if !strings.HasPrefix(path, prefix) {
		return false
	}

	if len(path) == len(prefix) {
		return true
	}

	if strings.HasSuffix(prefix, "/") {
		return true
	}

	return path[len(prefix)] == '/'
}
