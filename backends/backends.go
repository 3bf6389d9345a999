// Package backends defines the interface a primitive-operation engine needs
// to implement to back the ndarray library.
//
// The surface is deliberately narrow: buffer creation/transfer plus the
// handful of data-movement primitives the indexing engine composes (slice,
// slice-update, gather, scatter, take, reshape, broadcast, concatenate).
// Backends do not need to understand mixed NumPy-style indexing -- that is
// the job of the indexing package, built on top of these primitives.
//
// All primitive methods return an error for invalid arguments; the layers
// above convert those to panics with stack traces (see package
// github.com/gomlx/exceptions).
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/types/shapes"
	"k8s.io/klog/v2"
)

// DeviceNum represents which device holds a buffer or executes a primitive.
// It's up to the backend to interpret it, but it should be between 0 and
// Backend.NumDevices.
type DeviceNum int

// Buffer is a handle to a device buffer, opaque to users: only the backend
// that created it knows its content.
type Buffer any

// DataInterface is the sub-interface that defines the API to create buffers
// and transfer data to/from them.
type DataInterface interface {
	// BufferFromFlatData transfers data from Go, given as a flat slice of the
	// type corresponding to the shape's DType, to the device, and returns the
	// corresponding Buffer.
	BufferFromFlatData(deviceNum DeviceNum, flat any, shape shapes.Shape) (Buffer, error)

	// BufferToFlatData transfers the values of the buffer to the Go flat
	// slice, which must hold exactly shape.Size() elements.
	BufferToFlatData(buffer Buffer, flat any) error

	// BufferShape returns the shape of the buffer.
	BufferShape(buffer Buffer) (shapes.Shape, error)

	// BufferDeviceNum returns the device holding the buffer.
	BufferDeviceNum(buffer Buffer) (DeviceNum, error)

	// BufferFinalize tells the backend the buffer is no longer needed, so the
	// associated resources can be freed or reused immediately. A finalized
	// buffer must never be used again.
	BufferFinalize(buffer Buffer) error
}

// Backend is the API a primitive engine implements.
//
// Every primitive is a pure function from input buffers to one new output
// buffer: inputs are never mutated. Index values consumed by Gather, Scatter,
// and Take may be negative, in which case they count from the end of the
// indexed axis; out-of-range values are undefined behavior -- backends are
// not required to bounds-check.
type Backend interface {
	// Name returns the short name of the backend, e.g. "go".
	Name() string

	// Description is a longer description of the backend for pretty-printing.
	Description() string

	// NumDevices returns the number of devices available.
	NumDevices() DeviceNum

	DataInterface

	// Slice extracts a sub-array: one (start, limit, stride) triple per axis.
	// Strides may be negative, in which case start > limit and the axis is
	// walked backwards (limit may then be -1 to include index 0).
	Slice(x Buffer, starts, limits, strides []int) (Buffer, error)

	// SliceUpdate returns a copy of x with the region addressed by the
	// (start, limit, stride) triples overwritten by update. The update is
	// broadcast to the addressed window.
	SliceUpdate(x, update Buffer, starts, limits, strides []int) (Buffer, error)

	// Gather reads slices of x addressed by the index buffers: indices[i]
	// provides offsets along axes[i], and the index buffers are broadcast
	// together to a common "index shape". The output has shape
	// idxShape ++ sliceSizes, with len(sliceSizes) == x's rank, each output
	// slice read starting at the given offsets (0 on axes not listed).
	Gather(x Buffer, indices []Buffer, axes []int, sliceSizes []int) (Buffer, error)

	// Scatter is the dual of Gather: it returns a copy of x where, for each
	// position of the broadcast index shape, the corresponding window of
	// update is written at the addressed offsets. The update must have shape
	// idxShape ++ window with len(window) == x's rank. With no index buffers
	// the broadcast update simply overwrites x.
	Scatter(x Buffer, indices []Buffer, update Buffer, axes []int) (Buffer, error)

	// Take gathers elements along one axis: the output shape is x's shape
	// with the given axis replaced by the indices' dimensions (removed, for
	// scalar indices).
	Take(x Buffer, indices Buffer, axis int) (Buffer, error)

	// Reshape returns x reorganized to the given dimensions; the total size
	// must not change.
	Reshape(x Buffer, dimensions ...int) (Buffer, error)

	// BroadcastTo broadcasts x to the given dimensions, NumPy-style: x's
	// axes are aligned to the trailing output axes and size-1 axes are
	// repeated.
	BroadcastTo(x Buffer, dimensions ...int) (Buffer, error)

	// Concatenate the operands along the given axis.
	Concatenate(axis int, operands ...Buffer) (Buffer, error)

	// Finalize releases all associated resources immediately and makes the
	// backend invalid.
	Finalize()
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) Backend

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a backend with the given name and its constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the backend configuration to use if NDARRAY_BACKEND is
// not set. See NewWithConfig for the format.
var DefaultConfig string

// NDARRAY_BACKEND is the environment variable with the default backend
// configuration, formatted as "<backend_name>:<backend_configuration>".
const NDARRAY_BACKEND = "NDARRAY_BACKEND"

// New returns a new Backend using the default configuration:
//
// 1. The environment variable NDARRAY_BACKEND, if set.
// 2. The variable DefaultConfig, if set.
// 3. The first registered backend, with an empty configuration.
//
// It panics if no backend was registered.
func New() Backend {
	config, found := os.LookupEnv(NDARRAY_BACKEND)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig creates a Backend from a configuration string formatted as
// "<backend_name>:<backend_configuration>". The "<backend_configuration>"
// part is backend specific and may be empty.
func NewWithConfig(config string) Backend {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered backends for ndarray -- maybe import the default one with import _ "github.com/gomlx/ndarray/backends/simplego"?`)
	}
	backendName := config
	backendConfig := ""
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	}
	if backendName == "" {
		backendName = firstRegistered
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		exceptions.Panicf("can't find backend %q for configuration %q given", backendName, config)
	}
	klog.V(1).Infof("creating backend %q with configuration %q", backendName, backendConfig)
	return constructor(backendConfig)
}
