//go:build cgo && sqlite3_cgo

package db

import (
	_ "github.com/mattn/go-sqlite3"
)

// Opt-in native driver for builds that can afford cgo.
const driverID = "mattn/go-sqlite3"
const driverName = "sqlite3"
