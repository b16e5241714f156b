package state

// Registers the cgo driver as DriverCgo.
import _ "github.com/mattn/go-sqlite3"
