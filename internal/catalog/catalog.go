package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "labbroker/pkg/errors"
	"labbroker/pkg/logger"
	"labbroker/pkg/model"
	"labbroker/pkg/sanitizer"

	"gopkg.in/yaml.v3"
)

// SeedActor is the identity catalog seeding acts as.
var SeedActor = model.Requester{Username: "catalog-seed", Role: model.RoleAdmin}

// File is the on-disk shape of a resource catalog.
type File struct {
	Resources []*model.Resource `yaml:"resources"`
}

// Creator adds a resource to the live catalog.
type Creator interface {
	CreateResource(ctx context.Context, actor model.Requester, resource *model.Resource) error
}

type Report struct {
	Created []string
	Skipped []string
}

func Load(path string) ([]*model.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()

	resources, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return resources, nil
}

// Parse decodes a YAML catalog. Unknown keys and names repeated in any
// letter case are rejected.
func Parse(r io.Reader) ([]*model.Resource, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Resources))
	for i, res := range file.Resources {
		if res == nil {
			return nil, fmt.Errorf("resource %d is empty", i)
		}
		sanitizer.Resource(res)
		if res.Name == "" {
			return nil, fmt.Errorf("resource %d has no name", i)
		}
		key := strings.ToLower(res.Name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate resource name %q", res.Name)
		}
		seen[key] = true
	}
	return file.Resources, nil
}

// Seed creates every resource that does not exist yet. Existing names are
// skipped, so seeding is safe to repeat.
func Seed(ctx context.Context, creator Creator, resources []*model.Resource, log *logger.Logger) (Report, error) {
	var report Report
	for _, res := range resources {
		err := creator.CreateResource(ctx, SeedActor, res)
		switch {
		case err == nil:
			report.Created = append(report.Created, res.Name)
		case apperrors.HasCode(err, apperrors.CodeConflict):
			report.Skipped = append(report.Skipped, res.Name)
		default:
			return report, fmt.Errorf("failed to seed %s: %w", res.Name, err)
		}
	}
	log.Info("Catalog seeded", "created", len(report.Created), "skipped", len(report.Skipped))
	return report, nil
}
