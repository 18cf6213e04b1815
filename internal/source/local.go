package source

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/lessos/stride/internal/logger"
	"github.com/lessos/stride/internal/scaffold"
	"github.com/lessos/stride/migration"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const DefaultMigrationsFolder = "./migrations"

const (
	unitFileExtension = ".yml"

	defaultUpScriptExtension   = ".up.sql"
	defaultDownScriptExtension = ".down.sql"

	keyFormat = `^\d+(_[\w-]+)?$`
)

var keyRegexp = regexp.MustCompile(keyFormat)

// unitFile is the on-disk descriptor: paths of the two companion scripts,
// relative to the migrations folder.
type unitFile struct {
	Up   string `yaml:"up"`
	Down string `yaml:"down"`
}

// LocalFileSource reads migration units from a single folder. Every unit
// is a <key>.yml descriptor naming its up and down scripts; anything else
// in the folder is ignored.
type LocalFileSource struct {
	folder string
	lg     logger.Logger
}

var _ Source = (*LocalFileSource)(nil)

func NewLocalFSSource(folder string, lg logger.Logger) *LocalFileSource {
	return &LocalFileSource{
		folder: folder,
		lg:     lg,
	}
}

func (lfs *LocalFileSource) Folder() string {
	return lfs.folder
}

func (lfs *LocalFileSource) IsValid() bool {
	info, err := os.Stat(lfs.folder)
	if err != nil {
		return false
	}

	return info.IsDir()
}

func (lfs *LocalFileSource) AlreadyExists(key string) bool {
	info, err := os.Stat(filepath.Join(lfs.folder, key+unitFileExtension))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Create materializes a fresh unit: the descriptor rendered from the
// template plus two empty companion scripts. No collision checks beyond
// what the filesystem enforces.
func (lfs *LocalFileSource) Create(key, templatePath string) (*migration.Migration, error) {
	version, name, err := migration.SplitKey(key)
	if err != nil {
		return nil, err
	}

	upScript := key + defaultUpScriptExtension
	downScript := key + defaultDownScriptExtension

	contents, err := scaffold.Render(templatePath, scaffold.Data{
		Key:  key,
		Up:   upScript,
		Down: downScript,
	})
	if err != nil {
		return nil, err
	}

	descriptor := filepath.Join(lfs.folder, key+unitFileExtension)
	if err := ioutil.WriteFile(descriptor, []byte(contents), 0644); err != nil {
		return nil, errors.Wrapf(err, "could not create file [%s]", descriptor)
	}

	for _, script := range []string{upScript, downScript} {
		path := filepath.Join(lfs.folder, script)
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not create file [%s]", path)
		}

		if cErr := f.Close(); cErr != nil {
			return nil, errors.Wrapf(cErr, "could not close file %s", path)
		}
	}

	return &migration.Migration{
		Key:     key,
		Name:    name,
		Version: version,
	}, nil
}

// Select reads every descriptor in the folder concurrently and returns
// the units sorted by version ascending.
func (lfs *LocalFileSource) Select(ctx context.Context) (migration.Migrations, error) {
	keys, err := lfs.scanFolder()
	if err != nil {
		return nil, err
	}

	migrationsCh := make(chan *migration.Migration, len(keys))
	errorsCh := make(chan error, len(keys))
	var wg sync.WaitGroup

	for _, k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			m, err := lfs.readOne(key)
			if err != nil {
				mErr := errors.Wrapf(err, "with key %s", key)
				lfs.lg.Error(mErr)
				errorsCh <- mErr
				return
			}

			migrationsCh <- m
		}(k)
	}

	go func() {
		wg.Wait()
		close(migrationsCh)
		close(errorsCh)
	}()

	var result migration.Migrations

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case m, ok := <-migrationsCh:
			if !ok {
				sort.Sort(result)
				return result, nil
			}
			result = append(result, m)
		case err, ok := <-errorsCh:
			if ok {
				return nil, err
			}
		}
	}
}

func (lfs *LocalFileSource) scanFolder() ([]string, error) {
	files, err := ioutil.ReadDir(lfs.folder)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read keys from folder %s", lfs.folder)
	}

	var keys []string

	for i := range files {
		if files[i].IsDir() {
			continue
		}

		key, ok := keyFromFilename(files[i].Name())
		if !ok {
			lfs.lg.Debugf("skipping %s", files[i].Name())
			continue
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func (lfs *LocalFileSource) readOne(key string) (*migration.Migration, error) {
	descriptor := filepath.Join(lfs.folder, key+unitFileExtension)

	b, err := ioutil.ReadFile(descriptor)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedUnit, "could not read [%s]: %s", descriptor, err)
	}

	var uf unitFile
	if err := yaml.Unmarshal(b, &uf); err != nil {
		return nil, errors.Wrapf(ErrMalformedUnit, "could not parse [%s]: %s", descriptor, err)
	}

	if uf.Up == "" || uf.Down == "" {
		return nil, errors.Wrapf(ErrMalformedUnit, "[%s] must name both an up and a down script", descriptor)
	}

	up, err := lfs.readScript(uf.Up)
	if err != nil {
		return nil, err
	}

	down, err := lfs.readScript(uf.Down)
	if err != nil {
		return nil, err
	}

	version, name, err := migration.SplitKey(key)
	if err != nil {
		return nil, err
	}

	return &migration.Migration{
		Key:     key,
		Name:    name,
		Version: version,
		Up:      up,
		Down:    down,
	}, nil
}

func (lfs *LocalFileSource) readScript(relative string) (string, error) {
	path := filepath.Join(lfs.folder, relative)
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(ErrMalformedUnit, "could not read script [%s]: %s", path, err)
	}
	return string(b), nil
}

func keyFromFilename(filename string) (string, bool) {
	if !strings.HasSuffix(filename, unitFileExtension) {
		return "", false
	}

	key := strings.TrimSuffix(filename, unitFileExtension)
	if !keyRegexp.MatchString(key) {
		return "", false
	}

	return key, true
}
