package btrcall

import "os"

const (
	// LibraryEnv names the environment variable holding the engine library path.
	LibraryEnv = "BTRCALL_LIBRARY"

	// DefaultLibrary is loaded when neither WithLibrary nor LibraryEnv is set.
	DefaultLibrary = "libwbtrv32.so"
)

// LibraryPath returns the engine library the btrcallcgo backend loads by default.
func LibraryPath() string {
	if path := os.Getenv(LibraryEnv); path != "" {
		return path
	}
	return DefaultLibrary
}
