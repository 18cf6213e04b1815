package source

import (
	"context"

	"github.com/lessos/stride/migration"
	"github.com/pkg/errors"
)

var ErrNotAMigrationFile = errors.New("not a migration file")
var ErrMalformedUnit = errors.New("malformed migration unit")
var ErrDuplicateKey = errors.New("duplicate migration key")

// Selector discovers migrations and returns them sorted by version
// ascending.
type Selector interface {
	Select(ctx context.Context) (migration.Migrations, error)
}

// Source is a selector that can also author new migration units.
type Source interface {
	Selector

	IsValid() bool
	AlreadyExists(key string) bool
	Create(key, templatePath string) (*migration.Migration, error)
}
