//go:build !sqlite3_cgo

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// The pure Go driver registers under the same name as mattn's, so DSNs are shared.
const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
