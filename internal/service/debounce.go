package service

import (
	"sync"
	"time"
)

// Debouncer откладывает вызов fn, пока значения не перестанут приходить delay.
// Каждый Push перезапускает таймер, наружу уходит только последнее значение.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending T
	armed   bool
	stopped bool
}

// NewDebouncer создаёт debouncer; delay <= 0 вызывает fn сразу в Push
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Push запоминает значение и перезапускает таймер
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.delay <= 0 {
		d.mu.Unlock()
		d.fn(v)
		return
	}

	d.seq++
	seq := d.seq
	d.pending = v
	d.armed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
	d.mu.Unlock()
}

// fire срабатывает по таймеру; устаревший seq значит, что был более поздний Push
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || !d.armed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.armed = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Flush немедленно отдаёт отложенное значение, если оно есть
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.stopped || !d.armed {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.disarm()
	d.mu.Unlock()

	d.fn(v)
}

// Cancel выбрасывает отложенное значение
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
}

// Stop выбрасывает отложенное значение и игнорирует дальнейшие Push
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
	d.stopped = true
}

// Pending сообщает, ждёт ли значение таймера
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer[T]) disarm() {
	d.seq++
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.pending = zero
}
