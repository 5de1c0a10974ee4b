//go:build !unix

package storage

import "os"

// Without flock the file driver is safe within one process only.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
