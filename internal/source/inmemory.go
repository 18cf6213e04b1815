package source

import (
	"context"
	"sort"

	"github.com/lessos/stride/migration"
	"github.com/pkg/errors"
)

var ErrNoMigrations = errors.New("no migrations")

// InMemorySource serves a fixed set of migrations, mostly useful for
// embedding and tests.
type InMemorySource struct {
	migrations migration.Migrations
}

var _ Selector = (*InMemorySource)(nil)

func NewInMemorySource(migrations ...*migration.Migration) *InMemorySource {
	sorted := make(migration.Migrations, len(migrations))
	copy(sorted, migrations)
	sort.Sort(sorted)

	return &InMemorySource{migrations: sorted}
}

func (s *InMemorySource) Select(_ context.Context) (migration.Migrations, error) {
	if s.migrations == nil {
		return nil, ErrNoMigrations
	}

	return s.migrations, nil
}
