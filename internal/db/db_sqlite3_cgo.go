//go:build cgo && sqlite3_cgo

package db

import (
	_ "github.com/mattn/go-sqlite3"
)

// driverID is logged when a database is opened.
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)
