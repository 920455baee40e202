package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Cyvadra/tv-dispatch/internal/database"
	"github.com/stretchr/testify/require"
)

// setupTestDB points the global database at a fresh in-memory sqlite
// instance named after the test.
func setupTestDB(t *testing.T) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	require.NoError(t, database.InitDatabase(dsn))
}
