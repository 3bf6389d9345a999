package simplego

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Compile-time check:
var _ backends.DataInterface = (*Backend)(nil)

// Buffer for the SimpleGo backend holds a shape and its flat data.
//
// The flat data is always a slice of the Go type corresponding to
// shape.DType, in row-major order.
type Buffer struct {
	shape shapes.Shape
	valid bool

	// flat is always a slice of the underlying data type (shape.DType).
	flat any
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for the given dtype/length.
func (b *Backend) getBufferPool(dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolInterface, ok := b.bufferPools.Load(key)
	if !ok {
		klog.V(2).Infof("simplego: new buffer pool for %s[%d]", dtype, length)
		poolInterface, _ = b.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return &Buffer{
					flat:  reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
					shape: shapes.Make(dtype, length),
				}
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer takes a buffer from the backend pool of buffers.
func (b *Backend) getBuffer(dtype dtypes.DType, length int) *Buffer {
	pool := b.getBufferPool(dtype, length)
	buf := pool.Get().(*Buffer)
	buf.valid = true
	return buf
}

// putBuffer returns a buffer to the backend pool.
// After this, any references to the buffer should be dropped.
func (b *Backend) putBuffer(buffer *Buffer) {
	if buffer == nil || !buffer.shape.Ok() {
		return
	}
	buffer.valid = false
	pool := b.getBufferPool(buffer.shape.DType, buffer.shape.Size())
	pool.Put(buffer)
}

// newBuffer allocates (or reuses) a buffer for the given shape.
func (b *Backend) newBuffer(shape shapes.Shape) *Buffer {
	buffer := b.getBuffer(shape.DType, shape.Size())
	buffer.shape = shape.Clone()
	return buffer
}

// cloneBuffer allocates a new buffer with a copy of the contents.
func (b *Backend) cloneBuffer(buffer *Buffer) *Buffer {
	newBuffer := b.newBuffer(buffer.shape)
	copyFlat(newBuffer.flat, buffer.flat)
	return newBuffer
}

// copyFlat assumes both flat slices are of the same underlying type.
func copyFlat(flatDst, flatSrc any) {
	reflect.Copy(reflect.ValueOf(flatDst), reflect.ValueOf(flatSrc))
}

// bytes returns the raw storage of the buffer as a byte slice.
// Valid for every supported dtype, since elements are moved whole.
func (buf *Buffer) bytes() []byte {
	flatV := reflect.ValueOf(buf.flat)
	if flatV.Len() == 0 {
		return nil
	}
	numBytes := flatV.Len() * int(buf.shape.DType.Memory())
	return unsafe.Slice((*byte)(unsafe.Pointer(flatV.Pointer())), numBytes)
}

// castBuffer validates that the given backends.Buffer belongs to this backend
// and is still valid.
func castBuffer(buffer backends.Buffer, opName string) (*Buffer, error) {
	buf, ok := buffer.(*Buffer)
	if !ok {
		return nil, errors.Errorf("%s: buffer is not a %q backend buffer", opName, BackendName)
	}
	if buf == nil || buf.flat == nil || !buf.shape.Ok() || !buf.valid {
		return nil, errors.Errorf("%s: buffer (%p) is nil, invalid or was already finalized", opName, buf)
	}
	return buf, nil
}

// BufferFromFlatData transfers data from Go, given as a flat slice of the
// type corresponding to the shape's DType, and returns the corresponding
// backends.Buffer.
func (b *Backend) BufferFromFlatData(deviceNum backends.DeviceNum, flat any, shape shapes.Shape) (backends.Buffer, error) {
	if deviceNum != 0 {
		return nil, errors.Errorf("backend %q only supports deviceNum 0, cannot create buffer on deviceNum %d (shape=%s)",
			BackendName, deviceNum, shape)
	}
	if dtypes.FromGoType(reflect.TypeOf(flat).Elem()) != shape.DType {
		return nil, errors.Errorf("flat data type (%s) does not match shape DType (%s)",
			reflect.TypeOf(flat).Elem(), shape.DType)
	}
	if reflect.ValueOf(flat).Len() != shape.Size() {
		return nil, errors.Errorf("flat data has %d elements, but shape %s requires %d",
			reflect.ValueOf(flat).Len(), shape, shape.Size())
	}
	buffer := b.newBuffer(shape)
	copyFlat(buffer.flat, flat)
	return buffer, nil
}

// BufferToFlatData transfers the values of the buffer to the Go flat slice,
// which must hold exactly the number of elements of the buffer's shape.
func (b *Backend) BufferToFlatData(backendBuffer backends.Buffer, flat any) error {
	buf, err := castBuffer(backendBuffer, "BufferToFlatData")
	if err != nil {
		return err
	}
	copyFlat(flat, buf.flat)
	return nil
}

// BufferShape returns the shape of the buffer.
func (b *Backend) BufferShape(backendBuffer backends.Buffer) (shapes.Shape, error) {
	buf, err := castBuffer(backendBuffer, "BufferShape")
	if err != nil {
		return shapes.Invalid(), err
	}
	return buf.shape, nil
}

// BufferDeviceNum returns the deviceNum of the buffer: always 0.
func (b *Backend) BufferDeviceNum(backendBuffer backends.Buffer) (backends.DeviceNum, error) {
	if _, err := castBuffer(backendBuffer, "BufferDeviceNum"); err != nil {
		return 0, err
	}
	return 0, nil
}

// BufferFinalize returns the buffer to the backend pool so its space can be
// reused. A finalized buffer must never be used again.
func (b *Backend) BufferFinalize(backendBuffer backends.Buffer) error {
	buf, err := castBuffer(backendBuffer, "BufferFinalize")
	if err != nil {
		return err
	}
	b.putBuffer(buf)
	return nil
}
