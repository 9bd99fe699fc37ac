package boltdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoltTx(t *testing.T) {
	t.Run("empty commit", func(t *testing.T) {
		db := initBoltDB(t)
		tx, err := db.StartTx()
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		require.True(t, isEmpty(t, db))
	})

	t.Run("commit", func(t *testing.T) {
		db := initBoltDB(t)
		require.NoError(t, db.Write([]byte("acc/old"), "0"))

		tx, err := db.StartTx()
		require.NoError(t, err)
		require.NoError(t, tx.Write([]byte("acc/1"), "1"))
		require.NoError(t, tx.WriteRaw([]byte("acc/3"), []byte{0x61, 0x33}))
		require.NoError(t, tx.Delete([]byte("acc/old")))

		var s string
		found, err := tx.Read([]byte("acc/1"), &s)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "1", s)
		require.NoError(t, tx.Commit())

		for k, want := range map[string]string{"acc/1": "1", "acc/3": "3"} {
			found, err := db.Read([]byte(k), &s)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, want, s)
		}
		found, err = db.Read([]byte("acc/old"), &s)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("rollback", func(t *testing.T) {
		db := initBoltDB(t)
		tx, err := db.StartTx()
		require.NoError(t, err)
		var s string
		found, err := tx.Read([]byte("acc/1"), &s)
		require.NoError(t, err)
		require.False(t, found)
		require.NoError(t, tx.Write([]byte("acc/1"), "1"))
		require.NoError(t, tx.Rollback())
		require.True(t, isEmpty(t, db))
		// rollback of finished tx is no-op
		require.NoError(t, tx.Rollback())
	})

	t.Run("use after close", func(t *testing.T) {
		db := initBoltDB(t)
		tx, err := db.StartTx()
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		var s string
		found, err := tx.Read([]byte("acc/1"), &s)
		require.False(t, found)
		require.ErrorIs(t, err, errTxClosed)
		require.ErrorIs(t, tx.Write([]byte("acc/1"), "1"), errTxClosed)
		require.ErrorIs(t, tx.Delete([]byte("acc/1")), errTxClosed)
		require.ErrorIs(t, tx.Commit(), errTxClosed)
	})

	t.Run("encode error", func(t *testing.T) {
		db := initBoltDB(t)
		tx, err := db.StartTx()
		require.NoError(t, err)
		require.ErrorContains(t, tx.Write([]byte("acc/1"), make(chan int)), "encoding value")
		require.NoError(t, tx.Rollback())
	})
}
