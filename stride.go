// Package stride walks an ordered set of reversible migration units up
// or down against a pluggable execution driver, committing durable
// applied-state after every unit so that failures and re-runs resume
// from an exact prefix.
package stride

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lessos/stride/driver"
	"github.com/lessos/stride/internal/logger"
	"github.com/lessos/stride/internal/source"
	"github.com/lessos/stride/internal/state"
	"github.com/lessos/stride/migration"
	"github.com/pkg/errors"
)

var ErrDriverNotInitialized = errors.New("execution driver has not been initialized")
var ErrUnknownTarget = errors.New("unknown migration target")
var ErrInvalidTarget = errors.New("target shape not valid for this direction")
var ErrStateInconsistent = errors.New("applied state does not match the migration set")
var ErrSourceNotWritable = errors.New("migration source does not support creating units")

// Re-exported so callers can match load and persist failures without
// reaching into internal packages.
var ErrMalformedUnit = source.ErrMalformedUnit
var ErrDuplicateKey = source.ErrDuplicateKey
var ErrStateWrite = state.ErrStateWrite

// UnitError reports the single unit whose script failed; all units
// before it in the walk were executed and durably recorded.
type UnitError struct {
	Key       string
	Direction Direction
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("migration %s failed going %s: %s", e.Key, e.Direction, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Status of the most recent walk.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Listener receives walk notifications, delivered synchronously on the
// walk's goroutine in execution order. Embed BaseListener to implement
// only part of it.
type Listener interface {
	// Init fires once per walk, after the set has been loaded and
	// validated and before any unit executes.
	Init(units migration.Migrations, applied int)
	// Migration fires immediately before each unit's script executes.
	Migration(m *migration.Migration, d Direction)
	// Error fires when loading or validating the set fails; per-unit
	// failures are reported through the walk's return value instead.
	Error(err error)
}

type BaseListener struct{}

var _ Listener = (*BaseListener)(nil)

func (BaseListener) Init(_ migration.Migrations, _ int)          {}
func (BaseListener) Migration(_ *migration.Migration, _ Direction) {}
func (BaseListener) Error(_ error)                                {}

type stateStore interface {
	Read() (state.Record, error)
	Write(state.Record) error
}

type fileStateStore struct {
	path string
}

func (s *fileStateStore) Read() (state.Record, error) {
	return state.Read(s.path)
}

func (s *fileStateStore) Write(r state.Record) error {
	return state.Write(s.path, r)
}

type memoryStateStore struct {
	rec state.Record
}

func (s *memoryStateStore) Read() (state.Record, error) {
	return s.rec, nil
}

func (s *memoryStateStore) Write(r state.Record) error {
	s.rec = r
	return nil
}

type CloserFunc func() error

func defaultClock() time.Time {
	return time.Now()
}

// Migrator is the migration-set engine. Construct one per invocation;
// all durable state lives in the state store, not here.
type Migrator struct {
	lg            logger.Logger
	selector      source.Selector
	drv           driver.Driver
	store         stateStore
	templatePath  string
	versionLayout string
	clock         migration.ClockFunc
	listeners     []Listener
	status        Status
}

// NewMigrator assembles an engine from option callbacks; sensible
// defaults cover everything except the execution driver, which has no
// default backend.
func NewMigrator(opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := new(Migrator)
	m.lg = &logger.NullLogger{}
	m.clock = defaultClock
	m.versionLayout = migration.DefaultVersionLayout

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			return nil, nil, err
		}
	}

	if m.drv == nil {
		return nil, nil, ErrDriverNotInitialized
	}

	if m.selector == nil {
		m.selector = source.NewLocalFSSource(source.DefaultMigrationsFolder, m.lg)
	}

	if m.store == nil {
		if lfs, ok := m.selector.(*source.LocalFileSource); ok {
			m.store = &fileStateStore{path: filepath.Join(lfs.Folder(), state.DefaultFilename)}
		} else {
			m.store = &memoryStateStore{}
		}
	}

	return m, m.close, nil
}

// Subscribe registers a walk listener. Register before starting a walk;
// there is no unsubscribe.
func (m *Migrator) Subscribe(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Status reports the outcome of the most recent walk.
func (m *Migrator) Status() Status {
	return m.status
}

// Up walks forward until target, executing each pending unit's up script
// in version order and committing state after every unit. Valid targets
// are Latest and To; being already at or past the target is a no-op
// success. Returns the keys of the units executed.
func (m *Migrator) Up(ctx context.Context, target Target) ([]string, error) {
	set, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	var targetIdx int
	switch target.kind {
	case targetLatest:
		targetIdx = len(set.units) - 1
	case targetKey:
		targetIdx = set.units.IndexOfKey(target.key)
		if targetIdx < 0 {
			return nil, errors.Wrapf(ErrUnknownTarget, "%s", target.key)
		}
	default:
		return nil, errors.Wrap(ErrInvalidTarget, "up accepts Latest or To")
	}

	return m.walk(ctx, set, DirectionUp, targetIdx)
}

// Down walks backward until target, executing each applied unit's down
// script in reverse order. Valid targets are OneStep, Everything and To;
// nothing applied is a no-op success.
func (m *Migrator) Down(ctx context.Context, target Target) ([]string, error) {
	set, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	var targetIdx int
	switch target.kind {
	case targetOneStep:
		targetIdx = set.pos - 2
	case targetEverything:
		targetIdx = -1
	case targetKey:
		targetIdx = set.units.IndexOfKey(target.key)
		if targetIdx < 0 {
			return nil, errors.Wrapf(ErrUnknownTarget, "%s", target.key)
		}
	default:
		return nil, errors.Wrap(ErrInvalidTarget, "down accepts OneStep, Everything or To")
	}

	// OneStep from an empty state must stay a no-op
	if targetIdx < -1 {
		targetIdx = -1
	}

	return m.walk(ctx, set, DirectionDown, targetIdx)
}

// Create scaffolds a new unit: a generated version plus the slugified
// title become the key, and the source materializes the descriptor and
// two empty scripts. The title may be blank.
func (m *Migrator) Create(title string) (*migration.Migration, error) {
	src, ok := m.selector.(source.Source)
	if !ok {
		return nil, ErrSourceNotWritable
	}

	if !src.IsValid() {
		return nil, errors.Wrap(ErrSourceNotWritable, "migrations folder does not exist")
	}

	version := migration.GenerateVersion(m.clock, m.versionLayout)
	key := migration.CreateKeyFromVersionAndName(version, title)

	created, err := src.Create(key, m.templatePath)
	if err != nil {
		return nil, err
	}

	m.lg.Successf("created migration %s", created.Key)

	return created, nil
}

type migrationSet struct {
	units migration.Migrations
	pos   int
}

// load builds a fresh migration set: discovered units plus the applied
// record, validated so that the record is exactly a leading prefix of
// the sorted unit list.
func (m *Migrator) load(ctx context.Context) (*migrationSet, error) {
	units, err := m.selector.Select(ctx)
	if err != nil {
		m.notifyError(err)
		return nil, err
	}

	for i := 1; i < len(units); i++ {
		if units[i].Key == units[i-1].Key {
			err := errors.Wrapf(source.ErrDuplicateKey, "%s", units[i].Key)
			m.notifyError(err)
			return nil, err
		}
	}

	rec, err := m.store.Read()
	if err != nil {
		m.notifyError(err)
		return nil, err
	}

	for i, key := range rec.Applied {
		if i >= len(units) || units[i].Key != key {
			err := errors.Wrapf(ErrStateInconsistent,
				"recorded key %s at position %d has no matching unit", key, i)
			m.notifyError(err)
			return nil, err
		}
	}

	set := &migrationSet{units: units, pos: len(rec.Applied)}

	for _, l := range m.listeners {
		l.Init(set.units, set.pos)
	}

	return set, nil
}

// walk advances pos one unit at a time toward targetIdx, persisting the
// record after every successful unit so a crash or failure leaves state
// reflecting exactly the committed prefix. The first failure stops the
// walk; nothing is compensated or retried.
func (m *Migrator) walk(ctx context.Context, set *migrationSet, d Direction, targetIdx int) ([]string, error) {
	m.status = StatusRunning

	var executed []string

	for {
		var unit *migration.Migration
		var script string

		switch d {
		case DirectionUp:
			if set.pos > targetIdx {
				m.status = StatusCompleted
				m.report(executed, d)
				return executed, nil
			}
			unit = set.units[set.pos]
			script = unit.Up
		case DirectionDown:
			if set.pos-1 <= targetIdx {
				m.status = StatusCompleted
				m.report(executed, d)
				return executed, nil
			}
			unit = set.units[set.pos-1]
			script = unit.Down
		}

		for _, l := range m.listeners {
			l.Migration(unit, d)
		}

		m.lg.Debugf("%s %s", d, unit.Key)
		m.lg.SQL(script)

		if err := m.drv.Exec(ctx, script); err != nil {
			m.status = StatusFailed
			uErr := &UnitError{Key: unit.Key, Direction: d, Err: err}
			m.lg.Error(uErr)
			return executed, uErr
		}

		if d == DirectionUp {
			set.pos++
		} else {
			set.pos--
		}

		if err := m.persist(set); err != nil {
			m.status = StatusFailed
			m.lg.Error(err)
			return executed, err
		}

		executed = append(executed, unit.Key)
	}
}

func (m *Migrator) persist(set *migrationSet) error {
	rec := state.Record{
		LastRun: m.clock(),
		Applied: set.units[:set.pos].Keys(),
	}

	return m.store.Write(rec)
}

func (m *Migrator) report(executed []string, d Direction) {
	if len(executed) == 0 {
		m.lg.Successf("nothing to do going %s", d)
		return
	}

	m.lg.Successf("%d migration(s) executed going %s", len(executed), d)
}

func (m *Migrator) notifyError(err error) {
	m.lg.Error(err)
	for _, l := range m.listeners {
		l.Error(err)
	}
}

func (m *Migrator) close() error {
	if m.drv == nil {
		return ErrDriverNotInitialized
	}

	if err := m.drv.Close(); err != nil {
		m.lg.Error(err)
		return err
	}

	return nil
}
