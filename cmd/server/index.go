package main

import (
	"path/filepath"

	"github.com/ShiraishiHope/MultiAgents/internal/persistence/indexdb"
)

// openRuntimeIndex opens the per-world sqlite read-model. It does not
// affect the simulation; nil means indexing is off.
func openRuntimeIndex(worldDir string, disable bool) (*indexdb.SQLiteIndex, error) {
	if disable {
		return nil, nil
	}
	return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
}
