//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// vecCompiled reports whether the sqlite-vec extension is linked in.
const vecCompiled = true

func init() {
	// Register sqlite-vec as an auto-loadable extension for the
	// mattn/go-sqlite3 driver.
	vec.Auto()
}
