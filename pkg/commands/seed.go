package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iota-uz/admin-portal/modules/core/seed"
	"github.com/iota-uz/admin-portal/pkg/application"
)

// SeedFile is the YAML layout accepted by the seed command.
type SeedFile struct {
	Tenants []seed.TenantSpec `yaml:"tenants"`
}

func ParseSeedFile(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	for i, t := range f.Tenants {
		if t.Name == "" || t.Domain == "" || t.AdminEmail == "" {
			return nil, fmt.Errorf("invalid seed file: tenant %d needs name, domain and adminEmail", i+1)
		}
	}
	return &f, nil
}

// SeedDatabase runs every module's seed steps, then provisions the tenants
// listed in path when it is set.
func SeedDatabase(ctx context.Context, app application.Application, path string) error {
	if err := app.Seeder().Seed(ctx, app); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	spec, err := ParseSeedFile(f)
	if err != nil {
		return err
	}
	return seed.Tenants(ctx, app, spec.Tenants...)
}
