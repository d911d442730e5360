package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	writes int
	reads  int
}

func (m *countingMetrics) ObserveWrite(time.Duration, int)            { m.writes++ }
func (m *countingMetrics) ObserveRead(time.Duration, int)             { m.reads++ }
func (m *countingMetrics) ObserveBatchCommit(time.Duration, int, int) {}

func TestOpenExecQuery(t *testing.T) {
	ctx := context.Background()
	m := &countingMetrics{}
	db, err := Open(Options{Path: filepath.Join(t.TempDir(), "t.db"), Metrics: m})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx, `create table if not exists kv (k integer primary key, v blob)`))
	for i := 1; i <= 3; i++ {
		_, err := db.Exec(ctx, 1, `insert into kv (k, v) values ($1, $2)`, i, []byte{byte(i)})
		require.NoError(t, err)
	}
	require.Equal(t, 3, m.writes)

	row, err := db.QueryRow(ctx, `select max(k) from kv`)
	require.NoError(t, err)
	var max int64
	require.NoError(t, row.Scan(&max))
	require.Equal(t, int64(3), max)

	rows, err := db.Query(ctx, `select k from kv where k >= $1 order by k`, 2)
	require.NoError(t, err)
	var ks []int64
	for rows.Next() {
		var k int64
		require.NoError(t, rows.Scan(&k))
		ks = append(ks, k)
	}
	require.NoError(t, rows.Err())
	rows.Close()
	require.Equal(t, []int64{2, 3}, ks)
}

func TestCloseIdempotent(t *testing.T) {
	db, err := Open(Options{Path: filepath.Join(t.TempDir(), "t.db"), Synchronous: SyncNormal})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Options{})
	require.Error(t, err)
}
