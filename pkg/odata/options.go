package odata

import (
	"net/url"
	"strconv"
	"strings"

	"go.einride.tech/aip/ordering"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type Options struct {
	Filter  string
	Select  []string
	OrderBy ordering.OrderBy
	Top     int
	Skip    int
	Count   bool
}

type Limits struct {
	PageSize    int
	MaxPageSize int
}

// ParseOptions reads the system query options from values. Problems are
// reported per option in a *serrors.ValidationError.
func ParseOptions(values url.Values, limits Limits) (*Options, error) {
	verr := serrors.NewValidationError()
	opts := &Options{
		Filter: strings.TrimSpace(values.Get("$filter")),
		Top:    limits.PageSize,
	}

	if raw := strings.TrimSpace(values.Get("$select")); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				verr.Add("$select", "empty field name")
				continue
			}
			opts.Select = append(opts.Select, name)
		}
	}

	if raw := strings.TrimSpace(values.Get("$orderby")); raw != "" {
		if err := opts.OrderBy.UnmarshalString(raw); err != nil {
			verr.Add("$orderby", err.Error())
		}
	}

	if raw := values.Get("$top"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil || n < 0:
			verr.Add("$top", "must be a non-negative integer")
		case limits.MaxPageSize > 0 && n > limits.MaxPageSize:
			opts.Top = limits.MaxPageSize
		default:
			opts.Top = n
		}
	}

	if raw := values.Get("$skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("$skip", "must be a non-negative integer")
		} else {
			opts.Skip = n
		}
	}

	if raw := values.Get("$count"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Add("$count", "must be true or false")
		}
		opts.Count = b
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return opts, nil
}
