package source

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lessos/stride/internal/logger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUnit(t *testing.T, folder, key, up, down string) {
	t.Helper()

	descriptor := "up: " + key + ".up.sql\ndown: " + key + ".down.sql\n"
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, key+".yml"), []byte(descriptor), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, key+".up.sql"), []byte(up), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, key+".down.sql"), []byte(down), 0644))
}

func Test_MigrationsCanBeReadFromLocalFolder(t *testing.T) {
	folder, err := ioutil.TempDir("", "stride-source")
	require.NoError(t, err)
	defer os.RemoveAll(folder)

	// written out of order on purpose
	writeUnit(t, folder, "1597897177_create_baz_table", "CREATE TABLE baz (id int);", "DROP TABLE baz;")
	writeUnit(t, folder, "1596897167_create_foo_table", "CREATE TABLE foo (id int);", "DROP TABLE foo;")
	writeUnit(t, folder, "1596897188_create_bar_table", "CREATE TABLE bar (id int);", "DROP TABLE bar;")

	// files that do not match the naming convention are ignored
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "README.md"), []byte("# notes"), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "not_a_unit.yml"), []byte("up: x"), 0644))

	lfs := NewLocalFSSource(folder, &logger.NullLogger{})
	require.True(t, lfs.IsValid())

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	migrations, err := lfs.Select(ctx)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, "1596897167_create_foo_table", migrations[0].Key)
	assert.Equal(t, "1596897167", migrations[0].Version)
	assert.Equal(t, "create_foo_table", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE foo (id int);", migrations[0].Up)
	assert.Equal(t, "DROP TABLE foo;", migrations[0].Down)

	assert.Equal(t, "1596897188_create_bar_table", migrations[1].Key)
	assert.Equal(t, "1597897177_create_baz_table", migrations[2].Key)
}

func Test_DescriptorMustNameBothScripts(t *testing.T) {
	folder, err := ioutil.TempDir("", "stride-source")
	require.NoError(t, err)
	defer os.RemoveAll(folder)

	descriptor := "up: 1596897167_foo.up.sql\n"
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "1596897167_foo.yml"), []byte(descriptor), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "1596897167_foo.up.sql"), []byte("CREATE foo"), 0644))

	lfs := NewLocalFSSource(folder, &logger.NullLogger{})

	_, err = lfs.Select(context.Background())
	assert.True(t, errors.Is(err, ErrMalformedUnit))
}

func Test_MissingScriptFileIsMalformed(t *testing.T) {
	folder, err := ioutil.TempDir("", "stride-source")
	require.NoError(t, err)
	defer os.RemoveAll(folder)

	descriptor := "up: 1596897167_foo.up.sql\ndown: 1596897167_foo.down.sql\n"
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "1596897167_foo.yml"), []byte(descriptor), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "1596897167_foo.up.sql"), []byte("CREATE foo"), 0644))

	lfs := NewLocalFSSource(folder, &logger.NullLogger{})

	_, err = lfs.Select(context.Background())
	assert.True(t, errors.Is(err, ErrMalformedUnit))
}

func Test_UnparseableDescriptorIsMalformed(t *testing.T) {
	folder, err := ioutil.TempDir("", "stride-source")
	require.NoError(t, err)
	defer os.RemoveAll(folder)

	require.NoError(t, ioutil.WriteFile(filepath.Join(folder, "1596897167_foo.yml"), []byte("up: [unclosed"), 0644))

	lfs := NewLocalFSSource(folder, &logger.NullLogger{})

	_, err = lfs.Select(context.Background())
	assert.True(t, errors.Is(err, ErrMalformedUnit))
}

func Test_NewUnitCanBeScaffolded(t *testing.T) {
	folder, err := ioutil.TempDir("", "stride-source")
	require.NoError(t, err)
	defer os.RemoveAll(folder)

	lfs := NewLocalFSSource(folder, &logger.NullLogger{})

	assert.False(t, lfs.AlreadyExists("1596897167_add_widgets"))

	m, err := lfs.Create("1596897167_add_widgets", "")
	require.NoError(t, err)
	assert.Equal(t, "1596897167_add_widgets", m.Key)
	assert.Equal(t, "1596897167", m.Version)
	assert.Equal(t, "add_widgets", m.Name)

	assert.True(t, lfs.AlreadyExists("1596897167_add_widgets"))

	// scaffolded unit loads back as an empty migration
	migrations, err := lfs.Select(context.Background())
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "1596897167_add_widgets", migrations[0].Key)
	assert.Equal(t, "", migrations[0].Up)
	assert.Equal(t, "", migrations[0].Down)
}

func Test_ScaffoldRespectsCustomTemplate(t *testing.T) {
	folder, err := ioutil.TempDir("", "stride-source")
	require.NoError(t, err)
	defer os.RemoveAll(folder)

	tplPath := filepath.Join(folder, "unit.tpl")
	tpl := "# custom {{.Key}}\nup: {{.Up}}\ndown: {{.Down}}\n"
	require.NoError(t, ioutil.WriteFile(tplPath, []byte(tpl), 0644))

	lfs := NewLocalFSSource(folder, &logger.NullLogger{})

	_, err = lfs.Create("1596897167_add_widgets", tplPath)
	require.NoError(t, err)

	b, err := ioutil.ReadFile(filepath.Join(folder, "1596897167_add_widgets.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "# custom 1596897167_add_widgets")
	assert.Contains(t, string(b), "up: 1596897167_add_widgets.up.sql")
}

func Test_InvalidFolder(t *testing.T) {
	lfs := NewLocalFSSource(filepath.Join("no", "such", "folder"), &logger.NullLogger{})
	assert.False(t, lfs.IsValid())

	_, err := lfs.Select(context.Background())
	assert.Error(t, err)
}
