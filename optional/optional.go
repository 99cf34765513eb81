// Package optional implements a value which may or may not be set. It is used
// where the zero value of a type is a valid value, such as queue family index 0.
package optional

// Optional holds a value of type T and remembers whether it was ever set.
type Optional[T any] struct {
	value T
	isSet bool
}

// Set stores v and marks the optional as having a value.
func (o *Optional[T]) Set(v T) {
	o.value = v
	o.isSet = true
}

// Get returns the stored value. It returns the zero value of T when nothing
// has been set, so callers should check HasValue first.
func (o Optional[T]) Get() T {
	return o.value
}

// HasValue reports whether Set was called.
func (o Optional[T]) HasValue() bool {
	return o.isSet
}

// Reset forgets the stored value.
func (o *Optional[T]) Reset() {
	var zero T
	o.value = zero
	o.isSet = false
}
