// Package simplego implements a simple, not particularly fast, but very
// portable pure-Go backend for ndarray.
//
// It implements only the data-movement primitives the library composes
// (slice, slice-update, gather, scatter, take, reshape, broadcast,
// concatenate), for all the supported dtypes. Since these primitives never
// do arithmetic on the values, they move raw elements and work uniformly
// for every dtype.
//
// Out-of-range index values passed to Gather, Scatter, or Take are not
// bounds-checked: they are undefined behavior, usually surfacing as a Go
// slice bounds panic.
package simplego

import (
	"sync"

	"github.com/gomlx/ndarray/backends"
)

// BackendName to be used in NDARRAY_BACKEND to specify this backend.
const BackendName = "go"

// Registers New() as the constructor for the "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend.
// There are no configurations, the string is simply ignored.
func New(_ string) backends.Backend {
	return &Backend{}
}

// Backend implements the backends.Backend interface.
type Backend struct {
	// bufferPools maps bufferPoolKey -> *sync.Pool of reusable buffers.
	bufferPools sync.Map
}

// Compile-time check that simplego.Backend implements backends.Backend.
var _ backends.Backend = (*Backend)(nil)

// Name returns the short name of the backend.
func (b *Backend) Name() string { return BackendName }

// String implements fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the backend for pretty-printing.
func (b *Backend) Description() string {
	return "Simple Go Portable Backend"
}

// NumDevices returns the number of devices available: always 1, the host CPU.
func (b *Backend) NumDevices() backends.DeviceNum { return 1 }

// Finalize releases all the associated resources immediately and makes the
// backend invalid.
func (b *Backend) Finalize() {
	b.bufferPools.Clear()
}
