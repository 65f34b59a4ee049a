package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/litesql/internal/config"
	"github.com/satishbabariya/litesql/internal/core/result"
	"github.com/satishbabariya/litesql/internal/core/value"
	"github.com/satishbabariya/litesql/internal/ui"
	"github.com/satishbabariya/litesql/pkg/client"
)

func setup(t *testing.T) *bytes.Buffer {
	t.Helper()
	prevFs, prevOut, prevColor := config.AppFs, ui.Out, color.NoColor
	var buf bytes.Buffer
	config.AppFs, ui.Out, color.NoColor = afero.NewMemMapFs(), &buf, true
	t.Cleanup(func() { config.AppFs, ui.Out, color.NoColor = prevFs, prevOut, prevColor })
	return &buf
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	return root.Execute()
}

func TestExecAndQuery(t *testing.T) {
	out := setup(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	require.NoError(t, run(t, "--database", db, "exec", "--tx", "-e", `
		CREATE TABLE "items" ("id" INTEGER PRIMARY KEY, "name" TEXT);
		INSERT INTO "items" ("name") VALUES ('bolt'), ('nut');
	`))
	assert.Contains(t, out.String(), "INSERT: 2 rows affected")
	assert.Contains(t, out.String(), "2 statements executed")

	out.Reset()
	require.NoError(t, run(t, "--database", db, "query", `SELECT "name" FROM "items" WHERE "id" = ?`, "2"))
	assert.Contains(t, out.String(), "nut")
	assert.Contains(t, out.String(), "(1 row)")
}

func TestExec_FailingScriptInTransactionLeavesNothing(t *testing.T) {
	setup(t)
	db := filepath.Join(t.TempDir(), "cli.db")

	require.NoError(t, run(t, "--database", db, "exec", "-e", `CREATE TABLE "t" ("x" INTEGER UNIQUE)`))
	err := run(t, "--database", db, "exec", "--tx", "-e", `INSERT INTO "t" VALUES (1); INSERT INTO "t" VALUES (1);`)
	require.Error(t, err)
	assert.True(t, client.IsUniqueConstraint(err))

	out := setup(t)
	require.NoError(t, run(t, "--database", db, "query", `SELECT count(*) AS "n" FROM "t"`))
	assert.Contains(t, out.String(), "0")
}

func TestExec_ArgumentValidation(t *testing.T) {
	setup(t)
	assert.Error(t, run(t, "exec"))
	assert.Error(t, run(t, "exec", "--watch", "-e", "SELECT 1"))
}

func TestParseArg(t *testing.T) {
	assert.Equal(t, int64(42), parseArg("42"))
	assert.Equal(t, int64(10), parseArg("010"))
	assert.Equal(t, 1.5, parseArg("1.5"))
	assert.Equal(t, true, parseArg("TRUE"))
	assert.Nil(t, parseArg("null"))
	assert.Equal(t, "bolt", parseArg("bolt"))
}

func TestPlanMarkdown(t *testing.T) {
	rec := func(id, parent int64, detail string) result.Record {
		return result.NewRecord(
			[]string{"id", "parent", "notused", "detail"},
			[]value.Value{value.Int(id), value.Int(parent), value.Int(0), value.MustText(detail)},
		)
	}
	md := planMarkdown(` SELECT 1 `, []result.Record{
		rec(2, 0, "SCAN items"),
		rec(5, 2, "USE TEMP B-TREE FOR ORDER BY"),
		rec(7, 0, "SEARCH tags USING INDEX tags_item"),
	})
	assert.Equal(t, "# Query plan\n\n```sql\nSELECT 1\n```\n\n"+
		"- SCAN items\n  - USE TEMP B-TREE FOR ORDER BY\n- SEARCH tags USING INDEX tags_item\n", md)

	assert.Contains(t, planMarkdown("SELECT 1", nil), "_No plan steps._")
}

func TestConfigRowsRedactSecrets(t *testing.T) {
	rows := configRows(&config.Config{Database: "a.db", EncryptionKey: "k", AuthToken: "t"})
	values := map[string]string{}
	for _, r := range rows {
		values[r[0]] = r[1]
	}
	assert.Equal(t, "a.db", values["database"])
	assert.Equal(t, "(none)", values["config file"])
	assert.Equal(t, "********", values[config.KeyEncryptionKey])
	assert.Equal(t, "********", values[config.KeyAuthToken])
}

func TestVersionSkipsConfig(t *testing.T) {
	setup(t)
	require.NoError(t, afero.WriteFile(config.AppFs, ".litesql.yaml", []byte("log_level: [broken"), 0o644))
	assert.NoError(t, run(t, "version", "--short"))
}
