package driver

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lessos/stride/internal/retry"
	"github.com/pkg/errors"
)

// ConnectOptions tune the retrying connectivity check performed before
// the first script runs.
type ConnectOptions struct {
	MaxAttempts int
	Step        time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: 10,
		Step:        1 * time.Second,
	}
}

type SQLOptionFunc func(*SQLDriver)

func WithConnectOptions(opts *ConnectOptions) SQLOptionFunc {
	return func(d *SQLDriver) {
		d.connectOptions = opts
	}
}

// SQLDriver runs migration scripts against any database/sql backend
// through sqlx. Scripts may contain several semicolon-separated
// statements; each statement is executed in file order. No transaction
// wraps the script: a unit is responsible for its own atomicity.
type SQLDriver struct {
	db             *sqlx.DB
	connectOptions *ConnectOptions
	connected      bool
}

var _ Driver = (*SQLDriver)(nil)

func NewSQLDriver(db *sql.DB, driverName string, opts ...SQLOptionFunc) *SQLDriver {
	d := &SQLDriver{
		db:             sqlx.NewDb(db, driverName),
		connectOptions: NewDefaultConnectOptions(),
	}

	for _, oFunc := range opts {
		oFunc(d)
	}

	return d
}

func (d *SQLDriver) Exec(ctx context.Context, script string) error {
	if !d.connected {
		if err := d.connect(ctx); err != nil {
			return err
		}
		d.connected = true
	}

	for _, stmt := range SplitStatements(script) {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "could not execute statement [%s]", stmt)
		}
	}

	return nil
}

func (d *SQLDriver) Close() error {
	return d.db.Close()
}

func (d *SQLDriver) connect(ctx context.Context) error {
	return retry.Incremental(ctx, d.connectOptions.Step, d.connectOptions.MaxAttempts, func(attempt int) error {
		if err := d.db.PingContext(ctx); err != nil {
			return retry.Recoverable(errors.Wrap(err, "could not establish DB connection"), attempt)
		}

		return nil
	})
}

// SplitStatements breaks a script on semicolons, dropping blank pieces.
// Quoting is not honored; scripts needing literal semicolons should keep
// one statement per unit.
func SplitStatements(script string) []string {
	var result []string

	for _, piece := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(piece)
		if stmt == "" {
			continue
		}
		result = append(result, stmt)
	}

	return result
}
