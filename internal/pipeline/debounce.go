package pipeline

import "time"

// DefaultDebounce is the quiet period before an edit is written through
const DefaultDebounce = 700 * time.Millisecond

// Debouncer buffers edits to a single text record and writes the last one
// once no newer edit arrived for delay. It belongs to the coordinator:
// every method, and the write callback, runs on the coordinator goroutine.
// Timer expiry is routed back through post.
type Debouncer struct {
	delay time.Duration
	post  func(func()) bool
	write func(id int64, text string)

	timer   *time.Timer
	pending bool
	id      int64
	text    string
	gen     uint64
}

// NewDebouncer creates an idle debouncer
func NewDebouncer(delay time.Duration, post func(func()) bool, write func(id int64, text string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, post: post, write: write}
}

// Edit buffers text for id and restarts the quiet period. A pending edit
// for a different record is written immediately so it is never lost.
func (d *Debouncer) Edit(id int64, text string) {
	if d.pending && d.id != id {
		d.fire()
	}

	d.id = id
	d.text = text
	d.pending = true
	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.post(func() { d.expire(gen) })
	})
}

// Flush writes any pending edit now
func (d *Debouncer) Flush() {
	if d.pending {
		d.fire()
	}
}

// Pending reports the buffered edit, if any
func (d *Debouncer) Pending() (int64, string, bool) {
	return d.id, d.text, d.pending
}

// expire ignores timers superseded by a newer edit or a flush
func (d *Debouncer) expire(gen uint64) {
	if d.pending && gen == d.gen {
		d.fire()
	}
}

// Take removes the pending edit without writing it
func (d *Debouncer) Take() (int64, string, bool) {
	if !d.pending {
		return 0, "", false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.gen++
	return d.id, d.text, true
}

func (d *Debouncer) fire() {
	if id, text, ok := d.Take(); ok {
		d.write(id, text)
	}
}
