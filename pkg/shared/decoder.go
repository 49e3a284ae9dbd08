package shared

import (
	"time"

	"github.com/go-playground/form"
	"github.com/google/uuid"
)

// Decoder binds url.Values onto page DTOs.
var Decoder = newDecoder()

func newDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		if vals[0] == "" {
			return uuid.Nil, nil
		}
		return uuid.Parse(vals[0])
	}, uuid.UUID{})
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		if vals[0] == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse("2006-01-02T15:04", vals[0]); err == nil {
			return t, nil
		}
		return time.Parse(time.RFC3339, vals[0])
	}, time.Time{})
	return d
}
