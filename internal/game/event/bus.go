package event

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id uint64
	// typ is empty for subscriptions to every type.
	typ Type
	fn  Handler
}

// Bus is a synchronous, ordered publish/subscribe channel owned by one combat session.
// Handlers run on the publishing goroutine in subscription order. A handler may
// publish; the nested event is delivered before Publish returns.
//
// Bus is not safe for concurrent use; the frame loop owns it exclusively.
type Bus struct {
	subs   []subscription
	nextID uint64
	seq    uint64
	closed bool
}

// NewBus returns an open Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for events of type t and returns a function that
// removes the subscription. The returned function is idempotent.
//
// Precondition: fn must not be nil.
// Postcondition: fn is invoked for every subsequent Publish of t until unsubscribed or Close.
func (b *Bus) Subscribe(t Type, fn Handler) (unsubscribe func()) {
	return b.add(t, fn)
}

// SubscribeAll registers fn for every event type.
//
// Precondition: fn must not be nil.
func (b *Bus) SubscribeAll(fn Handler) (unsubscribe func()) {
	return b.add("", fn)
}

func (b *Bus) add(t Type, fn Handler) func() {
	if b.closed {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: t, fn: fn})
	return func() { b.remove(id) }
}

func (b *Bus) remove(id uint64) {
	for i, s := range b.subs {
		if s.id == id {
			// copy-on-remove so an in-flight Publish keeps iterating its own snapshot
			next := make([]subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			next = append(next, b.subs[i+1:]...)
			b.subs = next
			return
		}
	}
}

// Publish delivers an event of type t with payload to every matching subscriber.
// Publishing on a closed bus is a no-op. A handler that closes the bus stops
// delivery to the handlers after it.
//
// Postcondition: Returns the delivered Event; Seq is zero when the bus is closed.
func (b *Bus) Publish(t Type, payload any) Event {
	if b.closed {
		return Event{Type: t, Payload: payload}
	}
	b.seq++
	ev := Event{Seq: b.seq, Type: t, Payload: payload}
	for _, s := range b.subs {
		if b.closed {
			break
		}
		if s.typ == "" || s.typ == t {
			s.fn(ev)
		}
	}
	return ev
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int { return len(b.subs) }

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool { return b.closed }

// Close drops every subscription and rejects further subscriptions and publishes.
// Close is idempotent.
func (b *Bus) Close() {
	b.subs = nil
	b.closed = true
}

// Recorder captures every event published on a bus, in order.
type Recorder struct {
	Events []Event
	stop   func()
}

// Record attaches a new Recorder to b.
func Record(b *Bus) *Recorder {
	r := &Recorder{}
	r.stop = b.SubscribeAll(func(ev Event) { r.Events = append(r.Events, ev) })
	return r
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() { r.Events = nil }

// Stop detaches the recorder from its bus.
func (r *Recorder) Stop() { r.stop() }
