//go:build !sqlite3_cgo

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Default pure-Go driver, keeps pilebox cross-compilable without cgo.
const driverID = "ncruces/go-sqlite3"
const driverName = "sqlite3"
