// Package native binds the ifcglb converter shared library via purego.
//
// The library is loaded lazily, exactly once per process, the first time a
// caller needs it. There is no exported constructor for the binding: callers
// reach it only through the package-level functions.
package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// LibraryName is the platform-independent base name of the converter library.
const LibraryName = "ifcglb"

// ConvertSymbol is the exported C entry point:
//
//	int32_t ifcglb_convert_ifc_to_glb(const char *input, const char *output, const char *options_json);
const ConvertSymbol = "ifcglb_convert_ifc_to_glb"

var (
	// ErrLibraryUnavailable is returned when the shared library cannot be located or linked.
	ErrLibraryUnavailable = errors.New("native converter library unavailable")
	// ErrSymbolMissing is returned when the library lacks the conversion entry point.
	ErrSymbolMissing = errors.New("native converter symbol missing")
)

var (
	pathMu       sync.Mutex
	pathOverride string

	fnConvert func(input, output, options string) int32

	guard = NewGuard(loadLibrary)
)

// SetLibraryPath overrides library discovery with an explicit file path.
// It has no effect once the library is loaded.
func SetLibraryPath(path string) {
	pathMu.Lock()
	pathOverride = path
	pathMu.Unlock()
}

// EnsureLoaded loads the converter library if it has not been loaded yet.
// Concurrent callers wait for the same load and receive the same error.
func EnsureLoaded() error {
	return guard.EnsureLoaded()
}

// Loaded reports whether the converter library is loaded.
func Loaded() bool {
	return guard.Loaded()
}

// LibraryPath returns the path the next load attempt will use.
func LibraryPath() string {
	pathMu.Lock()
	override := pathOverride
	pathMu.Unlock()
	return resolveLibraryPath(override)
}

func loadLibrary() error {
	path := LibraryPath()

	handle, err := openLibrary(path)
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrLibraryUnavailable, path, err)
	}
	addr, err := findSymbol(handle, ConvertSymbol)
	if err != nil || addr == 0 {
		// a retry opens the library again
		_ = closeLibrary(handle)
		return fmt.Errorf("%w: %s in %s: %v", ErrSymbolMissing, ConvertSymbol, path, err)
	}

	purego.RegisterFunc(&fnConvert, addr)
	return nil
}

// libraryFileName returns the platform file name for LibraryName.
func libraryFileName() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return "lib" + LibraryName + ".dylib"
	case "windows":
		return LibraryName + ".dll"
	default:
		return "lib" + LibraryName + ".so"
	}
}

// resolveLibraryPath picks the override when set, otherwise the first existing
// candidate, otherwise the bare file name so the platform loader searches its
// own paths.
func resolveLibraryPath(override string) string {
	if override != "" {
		return override
	}

	name := libraryFileName()
	candidates := []string{
		name,
		filepath.Join("lib", name),
		filepath.Join("native", "build", name),
	}
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		candidates = append(candidates,
			filepath.Join(execDir, name),
			filepath.Join(execDir, "..", "lib", name),
		)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return name
}
