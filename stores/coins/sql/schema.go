package sql

import (
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/util/usql"
)

// the two dialects differ only in the binary column type
func createSchema(db *usql.DB, binary string) error {
	statements := []struct {
		name string
		q    string
	}{
		{"coins", `CREATE TABLE IF NOT EXISTS coins (
			 txid ` + binary + ` NOT NULL PRIMARY KEY
			,data ` + binary + ` NOT NULL
		)`},
		{"anchors", `CREATE TABLE IF NOT EXISTS anchors (
			 pool INTEGER NOT NULL
			,root ` + binary + ` NOT NULL
			,data ` + binary + ` NOT NULL
			,PRIMARY KEY (pool, root)
		)`},
		{"nullifiers", `CREATE TABLE IF NOT EXISTS nullifiers (
			 pool INTEGER NOT NULL
			,nf   ` + binary + ` NOT NULL
			,PRIMARY KEY (pool, nf)
		)`},
		{"history_nodes", `CREATE TABLE IF NOT EXISTS history_nodes (
			 epoch BIGINT NOT NULL
			,idx   BIGINT NOT NULL
			,data  ` + binary + ` NOT NULL
			,PRIMARY KEY (epoch, idx)
		)`},
		{"history", `CREATE TABLE IF NOT EXISTS history (
			 epoch  BIGINT NOT NULL PRIMARY KEY
			,length BIGINT NOT NULL
			,root   ` + binary + ` NOT NULL
		)`},
		{"tips", `CREATE TABLE IF NOT EXISTS tips (
			 kind INTEGER NOT NULL PRIMARY KEY
			,hash ` + binary + ` NOT NULL
		)`},
	}

	for _, st := range statements {
		if _, err := db.Exec(st.q); err != nil {
			_ = db.Close()
			return errors.NewStorageError("could not create %s table", st.name, err)
		}
	}

	return nil
}

func createPostgresSchema(db *usql.DB) error {
	return createSchema(db, "BYTEA")
}

func createSqliteSchema(db *usql.DB) error {
	return createSchema(db, "BLOB")
}
