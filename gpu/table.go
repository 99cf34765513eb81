package gpu

// handleTable maps the opaque handles handed to the render package to Vulkan
// objects. Handles start at 1 and are never reused.
type handleTable[H ~uint64, T any] struct {
	next  H
	items map[H]T
}

func newHandleTable[H ~uint64, T any]() handleTable[H, T] {
	return handleTable[H, T]{items: make(map[H]T)}
}

func (t *handleTable[H, T]) add(v T) H {
	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *handleTable[H, T]) get(h H) T {
	return t.items[h]
}

// remove drops h and returns what it pointed to. ok is false for unknown or
// already removed handles.
func (t *handleTable[H, T]) remove(h H) (v T, ok bool) {
	v, ok = t.items[h]
	if ok {
		delete(t.items, h)
	}
	return v, ok
}

func (t *handleTable[H, T]) len() int {
	return len(t.items)
}
