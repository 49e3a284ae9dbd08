package types

import "github.com/a-h/templ"

// NavigationItem is one sidebar entry. Resource, Superadmin and Feature gate
// its visibility; empty values mean no restriction.
type NavigationItem struct {
	Name       string
	Href       string
	Icon       templ.Component
	Children   []NavigationItem
	Resource   string
	Superadmin bool
	Feature    string
}

// Visible reports whether the item is shown to a user. can checks a role
// resource and hasFeature checks the tenant's features.
func (n NavigationItem) Visible(superadmin bool, can func(resource string) bool, hasFeature func(feature string) bool) bool {
	if n.Superadmin && !superadmin {
		return false
	}
	if superadmin {
		return true
	}
	if n.Feature != "" && !hasFeature(n.Feature) {
		return false
	}
	return n.Resource == "" || can(n.Resource)
}

// FilterNavigation drops invisible items and empty groups.
func FilterNavigation(items []NavigationItem, superadmin bool, can func(string) bool, hasFeature func(string) bool) []NavigationItem {
	out := make([]NavigationItem, 0, len(items))
	for _, item := range items {
		if !item.Visible(superadmin, can, hasFeature) {
			continue
		}
		if len(item.Children) > 0 {
			item.Children = FilterNavigation(item.Children, superadmin, can, hasFeature)
			if len(item.Children) == 0 && item.Href == "" {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
