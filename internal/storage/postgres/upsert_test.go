package postgres

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSpec_Build(t *testing.T) {
	spec := upsertSpec{
		table:     "t",
		conflict:  []string{"id"},
		insert:    []string{"id", "a", "b"},
		update:    []string{"a"},
		returning: "id",
	}

	got := spec.build(2)

	assert.Equal(t,
		"INSERT INTO t (id, a, b) VALUES ($1, $2, $3), ($4, $5, $6) "+
			"ON CONFLICT (id) DO UPDATE SET a = EXCLUDED.a RETURNING id",
		got)
}

func TestUpsertSpec_BuildWithoutReturning(t *testing.T) {
	got := metricsUpsert.build(1)

	assert.Contains(t, got, "($1, $2, $3, $4, $5, $6, $7, $8)")
	assert.NotContains(t, got, "RETURNING")
	assert.Contains(t, got, "pulled_at = EXCLUDED.pulled_at")
}

func TestPostUpsert_PreservesFirstSeen(t *testing.T) {
	assert.Contains(t, postUpsert.insert, "first_seen_at")
	assert.NotContains(t, postUpsert.update, "first_seen_at")
	assert.Contains(t, postUpsert.update, "last_seen_at")
	assert.NotContains(t, postUpsert.build(1), "first_seen_at = EXCLUDED")
}

func TestUpsertSpecs_UpdateEverythingButKeys(t *testing.T) {
	tests := []struct {
		name string
		spec upsertSpec
		keep []string
	}{
		{name: "posts", spec: postUpsert, keep: []string{"growi_post_id", "first_seen_at"}},
		{name: "metrics", spec: metricsUpsert, keep: []string{"growi_post_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, col := range tt.spec.update {
				assert.Contains(t, tt.spec.insert, col, "update column %s is never inserted", col)
			}
			for _, col := range tt.spec.insert {
				if slices.Contains(tt.keep, col) {
					assert.NotContains(t, tt.spec.update, col)
					continue
				}
				assert.Contains(t, tt.spec.update, col, "column %s is not refreshed on conflict", col)
			}
		})
	}
}

func TestUpsertSpec_RowsPerStatement(t *testing.T) {
	n := postUpsert.rowsPerStatement()

	require.Greater(t, n, 1000)
	assert.LessOrEqual(t, n*len(postUpsert.insert), maxParams)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(0, 10))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 10))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunks(5, 2))
}

func TestJSONArg(t *testing.T) {
	assert.Nil(t, jsonArg(nil))
	assert.Equal(t, `{"a":1}`, jsonArg([]byte(`{"a":1}`)))
}
