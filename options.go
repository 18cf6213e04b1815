package stride

import (
	"database/sql"

	"github.com/lessos/stride/driver"
	"github.com/lessos/stride/internal/logger"
	"github.com/lessos/stride/internal/source"
	"github.com/lessos/stride/migration"
)

type OptionFunc func(*Migrator) error

// UseLocalFolderSource reads migration units from folder. Unless
// overridden with UseStateFile the applied-state record lives in the
// same folder.
func UseLocalFolderSource(folder string) OptionFunc {
	return func(m *Migrator) error {
		m.selector = source.NewLocalFSSource(folder, m.lg)
		return nil
	}
}

// UseInMemorySource serves a fixed migration set; applied state is kept
// in memory too unless UseStateFile is given.
func UseInMemorySource(migrations ...*migration.Migration) OptionFunc {
	return func(m *Migrator) error {
		m.selector = source.NewInMemorySource(migrations...)
		return nil
	}
}

// UseDriver installs the execution driver the walk hands each unit's
// script to.
func UseDriver(d driver.Driver) OptionFunc {
	return func(m *Migrator) error {
		m.drv = d
		return nil
	}
}

// UseMySQL executes scripts against a MySQL database.
func UseMySQL(db *sql.DB, opts ...driver.SQLOptionFunc) OptionFunc {
	return UseDriver(driver.NewSQLDriver(db, "mysql", opts...))
}

// UseSqlite executes scripts against an sqlite database.
func UseSqlite(db *sql.DB, opts ...driver.SQLOptionFunc) OptionFunc {
	return UseDriver(driver.NewSQLDriver(db, "sqlite3", opts...))
}

// UseStateFile overrides where the applied-state record is persisted.
func UseStateFile(path string) OptionFunc {
	return func(m *Migrator) error {
		m.store = &fileStateStore{path: path}
		return nil
	}
}

// UseTemplate overrides the descriptor template used by Create.
func UseTemplate(path string) OptionFunc {
	return func(m *Migrator) error {
		m.templatePath = path
		return nil
	}
}

// UseVersionLayout overrides the Go time layout for generated versions;
// the default is a unix timestamp.
func UseVersionLayout(layout string) OptionFunc {
	return func(m *Migrator) error {
		m.versionLayout = layout
		return nil
	}
}

// UseClock overrides the clock used for version generation and the
// lastRun stamp.
func UseClock(cf migration.ClockFunc) OptionFunc {
	return func(m *Migrator) error {
		m.clock = cf
		return nil
	}
}

// UseColorLogger reports progress through p with aurora colors.
func UseColorLogger(p logger.Printer, printSQL, printDebug bool) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewColorLogger(p, printSQL, printDebug)
		return nil
	}
}

// UseBWLogger reports progress through p without colors.
func UseBWLogger(p logger.Printer, printSQL, printDebug bool) OptionFunc {
	return func(m *Migrator) error {
		m.lg = logger.NewBWLogger(p, printSQL, printDebug)
		return nil
	}
}
