//go:build btrcallcgo

package btrcall

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef int (*btr_entry_fn)(uint16_t, void*, void*, uint32_t*, void*, uint8_t, int8_t);

static void* btr_dlopen(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}
static const char* btr_dlerror(void) {
	return dlerror();
}
static int btr_dlclose(void* h) {
	return dlclose(h);
}

// Clear dlerror, call dlsym, and return the error (if any) alongside the symbol.
static void* btr_dlsym(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	char* e = dlerror();
	if (e) { *err = e; return NULL; }
	*err = NULL;
	return p;
}

// Call through the resolved entry point; cgo cannot call function pointers directly.
static int btr_call(void* fn, uint16_t op, void* pos, void* data, uint32_t* dataLength,
		void* key, uint8_t keyLength, int8_t keyNumber) {
	return ((btr_entry_fn)fn)(op, pos, data, dataLength, key, keyLength, keyNumber);
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"
)

const backend = BackendNative

// EntryPoint is the symbol resolved in the engine library.
const EntryPoint = "BTRCALL"

// Library is a loaded engine library. Its Call method is the Native Call
// Binding: it forwards one Frame to BTRCALL with the engine's fixed ABI.
type Library struct {
	path   string
	handle unsafe.Pointer
	entry  unsafe.Pointer
	once   sync.Once
	err    error
}

// OpenLibrary loads the engine library at path and resolves BTRCALL.
func OpenLibrary(path string) (*Library, error) {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))

	h := C.btr_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("%w: dlopen(%q): %s", ErrLibrary, path, dlerr())
	}

	name := C.CString(EntryPoint)
	defer C.free(unsafe.Pointer(name))

	var cerr *C.char
	sym := C.btr_dlsym(h, name, &cerr)
	if sym == nil {
		msg := "symbol not found"
		if cerr != nil {
			msg = C.GoString(cerr)
		}
		C.btr_dlclose(h)
		return nil, fmt.Errorf("%w: dlsym(%q) in %s: %s", ErrLibrary, EntryPoint, path, msg)
	}

	return &Library{path: path, handle: h, entry: sym}, nil
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Call invokes BTRCALL. The frame's regions must stay valid until it returns.
func (l *Library) Call(f *Frame) ResponseCode {
	rc := C.btr_call(l.entry,
		C.uint16_t(f.Operation),
		regionPointer(f.PositionBlock),
		regionPointer(f.Data),
		(*C.uint32_t)(unsafe.Pointer(f.DataLength)),
		regionPointer(f.Key),
		C.uint8_t(f.KeyLength),
		C.int8_t(f.KeyNumber))
	return ResponseCode(rc)
}

// Close unloads the library. Calls after Close are invalid.
func (l *Library) Close() error {
	l.once.Do(func() {
		if C.btr_dlclose(l.handle) != 0 {
			l.err = fmt.Errorf("%w: dlclose(%q): %s", ErrLibrary, l.path, dlerr())
		}
		l.handle = nil
		l.entry = nil
	})
	return l.err
}

func defaultBinding(cfg *config) (Binding, func() error, error) {
	path := cfg.library
	if path == "" {
		path = LibraryPath()
	}
	lib, err := OpenLibrary(path)
	if err != nil {
		return nil, nil, err
	}
	return lib, lib.Close, nil
}

// dlerr returns the last dlerror as a Go string, or a fallback label.
func dlerr() string {
	errC := C.btr_dlerror()
	if errC != nil {
		return C.GoString(errC)
	}
	return "unknown dlerror"
}

func regionPointer(region []byte) unsafe.Pointer {
	if region == nil {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(region))
}
