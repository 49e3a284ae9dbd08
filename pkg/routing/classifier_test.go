package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/admin-portal/pkg/routing"
)

func TestClassifier_ClassifyPath(t *testing.T) {
	c := routing.NewClassifier(routing.DefaultRules())

	tests := []struct {
		path string
		want routing.RouteClass
	}{
		{"/", routing.RouteClassUI},
		{"/users", routing.RouteClassUI},
		{"/api/users", routing.RouteClassAPI},
		{"/api", routing.RouteClassAPI},
		{"/apiary", routing.RouteClassUI},
		{"/odata/users/Filtered", routing.RouteClassOData},
		{"/ws", routing.RouteClassWebsocket},
		{"/health", routing.RouteClassOps},
		{"/debug/prometheus", routing.RouteClassOps},
		{"/assets/app.css", routing.RouteClassAsset},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyPath(tt.path))
		})
	}
	assert.True(t, c.WantsJSON("/odata/users"))
	assert.False(t, c.WantsJSON("/login"))
}

func TestHasPathPrefixOnBoundary(t *testing.T) {
	assert.True(t, routing.HasPathPrefixOnBoundary("/a/b", "/a"))
	assert.True(t, routing.HasPathPrefixOnBoundary("/a/b", "/a/"))
	assert.False(t, routing.HasPathPrefixOnBoundary("/ab", "/a"))
	assert.False(t, routing.HasPathPrefixOnBoundary("/a", ""))
	assert.True(t, routing.HasPathPrefixOnBoundary("/anything", "/"))
}
