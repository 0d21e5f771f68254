// Package ringbuf реализует ограниченный кольцевой буфер с независимыми
// курсорами читателей. Запись никогда не блокируется: отставший читатель
// теряет самые старые элементы, память остаётся ограниченной.
package ringbuf

import "sync"

// Ring - кольцевой буфер с одним писателем и несколькими читателями.
type Ring[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   uint64 // абсолютный индекс следующей записи
	closed bool
}

// New создаёт буфер на capacity элементов.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{buf: make([]T, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Push добавляет элемент, перезаписывая самый старый при переполнении.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.buf[r.head%uint64(len(r.buf))] = v
	r.head++
	r.mu.Unlock()
	r.cond.Broadcast()
}

// Close завершает буфер: читатели дочитывают остаток и получают ok=false.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// NewReader создаёт курсор, начинающий с текущей позиции записи.
func (r *Ring[T]) NewReader() *Reader[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Reader[T]{ring: r, next: r.head}
}

// Reader - собственный курсор одного потребителя.
type Reader[T any] struct {
	ring *Ring[T]
	next uint64
}

// Next блокируется до следующего элемента. dropped - сколько элементов было
// перезаписано из-за отставания читателя. ok=false после Close и дочитывания.
func (rd *Reader[T]) Next() (v T, dropped int, ok bool) {
	r := rd.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	for rd.next == r.head && !r.closed {
		r.cond.Wait()
	}
	if rd.next == r.head {
		var zero T
		return zero, 0, false
	}

	cap64 := uint64(len(r.buf))
	if r.head-rd.next > cap64 {
		dropped = int(r.head - cap64 - rd.next)
		rd.next = r.head - cap64
	}
	v = r.buf[rd.next%cap64]
	rd.next++
	return v, dropped, true
}
