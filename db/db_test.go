// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wevote/wevote-server/cliparse"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(context.Background(), cliparse.Config{DatabaseType: "sqlite", DatabaseURL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCreateSchema_Idempotent(t *testing.T) {
	conn := openMemory(t)

	require.NoError(t, CreateSchema(conn))
	require.NoError(t, CreateSchema(conn))

	for _, table := range Tables {
		var n int
		err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
		assert.NoError(t, err, table)
	}
}

func TestDropSchema(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, CreateSchema(conn))
	require.NoError(t, DropSchema(context.Background(), conn))

	_, err := conn.Exec("SELECT COUNT(*) FROM voter")
	assert.Error(t, err)
}

func TestNextSequenceValue(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, CreateSchema(conn))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := NextSequenceValue(ctx, conn, "voter")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Counters are independent per name
	got, err := NextSequenceValue(ctx, conn, "organization")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestWithTx(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, CreateSchema(conn))
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := WithTx(ctx, conn, func(tx *sql.Tx) error {
		if _, err := NextSequenceValue(ctx, tx, "rolled_back"); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM we_vote_setting WHERE name = 'rolled_back'").Scan(&n))
	assert.Equal(t, 0, n)

	err = WithTx(ctx, conn, func(tx *sql.Tx) error {
		_, err := NextSequenceValue(ctx, tx, "committed")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM we_vote_setting WHERE name = 'committed'").Scan(&n))
	assert.Equal(t, 1, n)
}
