package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	return conn
}

func TestDBBindsContext(t *testing.T) {
	base := NewBase(newTestDB(t))

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")
	bound := base.DB(ctx)
	require.NotNil(t, bound)
	require.Equal(t, "value", bound.Statement.Context.Value(key{}))
}

func TestBindKeepsBaseOnNilTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	require.Same(t, db, base.Bind(nil).db)

	tx := db.Session(&gorm.Session{})
	require.Same(t, tx, base.Bind(tx).db)
}
