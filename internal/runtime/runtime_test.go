package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"incresql/internal/kv"
	"incresql/internal/storage"
	"incresql/internal/types"
)

func openTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := Open(kv.Config{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func execOne(t *testing.T, c *Connection, sql string) Result {
	t.Helper()
	results, err := c.Execute(sql)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

// TestSelectLiteralArithmetic covers spec.md §8 seed scenario 1:
// SELECT 1 + 2 yields one row [3].
func TestSelectLiteralArithmetic(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	res := execOne(t, conn, `SELECT 1 + 2`)
	require.Equal(t, [][]string{{"3"}}, res.Rows)
}

// TestSelectFromSystemDatabases covers seed scenario 2: SELECT * FROM
// incresql.databases WHERE name = "default" returns exactly one row.
func TestSelectFromSystemDatabases(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	res := execOne(t, conn, `SELECT * FROM incresql.databases WHERE name = "default"`)
	require.Equal(t, [][]string{{"default"}}, res.Rows)
}

// TestCreateTableInsertGroupBy covers seed scenario 3: a fresh database
// and table, three literal inserts (two of them equal), grouped by value
// with count(*), ordered by the group key.
func TestCreateTableInsertGroupBy(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	_, err := conn.Execute(`CREATE DATABASE d`)
	require.NoError(t, err)
	_, err = conn.Execute(`USE d`)
	require.NoError(t, err)
	_, err = conn.Execute(`CREATE TABLE t(a INT)`)
	require.NoError(t, err)
	_, err = conn.Execute(`INSERT INTO t VALUES (1),(2),(2)`)
	require.NoError(t, err)

	res := execOne(t, conn, `SELECT a, count(*) FROM t GROUP BY a ORDER BY a`)
	require.Equal(t, [][]string{{"1", "1"}, {"2", "2"}}, res.Rows)
}

// TestUnionAllOrderBy covers seed scenario 4: two filtered scans of the
// same table combined with UNION ALL and sorted, retaining duplicates.
func TestUnionAllOrderBy(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	_, err := conn.Execute(`CREATE DATABASE d2`)
	require.NoError(t, err)
	_, err = conn.Execute(`USE d2`)
	require.NoError(t, err)
	_, err = conn.Execute(`CREATE TABLE t(a INT)`)
	require.NoError(t, err)
	_, err = conn.Execute(`INSERT INTO t VALUES (1),(2),(2)`)
	require.NoError(t, err)

	res := execOne(t, conn,
		`SELECT a FROM t WHERE a > 1 UNION ALL SELECT a FROM t WHERE a < 2 ORDER BY a`)
	require.Equal(t, [][]string{{"1"}, {"2"}, {"2"}}, res.Rows)
}

// TestDecimalCastMultiply covers seed scenario 5: casting a string
// literal to a scaled decimal and multiplying by an integer propagates
// precision/scale per the widening lattice (spec.md §4.4).
func TestDecimalCastMultiply(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	res := execOne(t, conn, `SELECT CAST("2.3" AS DECIMAL(10,1)) * 2`)
	require.Equal(t, [][]string{{"4.6"}}, res.Rows)
}

// TestRetraction covers the round-trip invariant of spec.md §8: an
// inserted row is visible once, and a subsequent retraction (freq -1)
// removes it from a later read. INSERT's SQL surface only ever writes
// freq +1, so the retraction itself is written directly against storage
// (as internal/exec's NegateFreq operator would feed it from a real
// incremental pipeline), resolving the table through the same catalog
// the connection uses.
func TestRetraction(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	_, err := conn.Execute(`CREATE DATABASE d3`)
	require.NoError(t, err)
	_, err = conn.Execute(`USE d3`)
	require.NoError(t, err)
	_, err = conn.Execute(`CREATE TABLE t(a INT)`)
	require.NoError(t, err)

	res := execOne(t, conn, `INSERT INTO t VALUES (1)`)
	require.EqualValues(t, 1, res.RowsAffected)

	sel := execOne(t, conn, `SELECT a FROM t`)
	require.Equal(t, [][]string{{"1"}}, sel.Rows)

	table, err := rt.cat.Table("d3", "t")
	require.NoError(t, err)
	err = storage.AtomicWrite(rt.store, func(b *storage.WriteBatch) error {
		return b.WriteTuple(table, types.Row{types.NewInteger(1)}, storage.Now(), -1)
	})
	require.NoError(t, err)

	sel = execOne(t, conn, `SELECT a FROM t`)
	require.Empty(t, sel.Rows)
}

// TestKillAbortsExecution covers spec.md §5's cancellation model: a
// session whose kill flag is already set aborts the next statement
// instead of running it to completion.
func TestKillAbortsExecution(t *testing.T) {
	rt := openTestRuntime(t)
	conn := rt.Connect("default")
	defer conn.Close()

	conn.Session().Kill()
	_, err := conn.Execute(`SELECT 1`)
	require.Error(t, err)
}
