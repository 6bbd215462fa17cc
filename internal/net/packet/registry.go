package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc handles one decoded inbound packet for session owner S. It
// must not retain pkt.Payload after returning.
type HandlerFunc[S any] func(s S, pkt *Packet) error

type handlerEntry[S any] struct {
	name    string
	framing Framing
	fn      HandlerFunc[S]
}

// Registry is the static opcode table: for each opcode the framing the
// decoder needs and the handler to run. Built once at startup, read-only
// afterwards, so lookups need no locking.
type Registry[S any] struct {
	handlers [256]*handlerEntry[S]
	log      *zap.Logger
}

func NewRegistry[S any](log *zap.Logger) *Registry[S] {
	return &Registry[S]{log: log}
}

// Register maps an opcode to its framing and handler. A nil handler makes
// the opcode known for framing but otherwise ignored. Registering the same
// opcode twice panics: the table is static.
func (reg *Registry[S]) Register(opcode int, name string, framing Framing, fn HandlerFunc[S]) {
	if opcode < 0 || opcode > 255 {
		panic(fmt.Sprintf("packet: opcode %d out of range", opcode))
	}
	if prev := reg.handlers[opcode]; prev != nil {
		panic(fmt.Sprintf("packet: opcode %d registered twice (%s, %s)", opcode, prev.name, name))
	}
	reg.handlers[opcode] = &handlerEntry[S]{name: name, framing: framing, fn: fn}
}

// Framing reports the declared framing of an opcode.
func (reg *Registry[S]) Framing(opcode int) (Framing, bool) {
	if opcode < 0 || opcode > 255 {
		return Framing{}, false
	}
	e := reg.handlers[opcode]
	if e == nil {
		return Framing{}, false
	}
	return e.framing, true
}

// Len returns the number of registered opcodes.
func (reg *Registry[S]) Len() int {
	n := 0
	for _, e := range reg.handlers {
		if e != nil {
			n++
		}
	}
	return n
}

// Dispatch runs the handler registered for pkt.Opcode. Unknown opcodes are
// protocol errors.
func (reg *Registry[S]) Dispatch(s S, pkt *Packet) error {
	var entry *handlerEntry[S]
	if pkt.Opcode >= 0 && pkt.Opcode <= 255 {
		entry = reg.handlers[pkt.Opcode]
	}
	if entry == nil {
		return fmt.Errorf("%w: unknown opcode %d", ErrProtocol, pkt.Opcode)
	}
	reg.log.Debug("dispatch",
		zap.Int("opcode", pkt.Opcode),
		zap.String("handler", entry.name),
		zap.Int("size", len(pkt.Payload)),
	)
	if entry.fn == nil {
		return nil
	}
	return reg.safeCall(entry, s, pkt)
}

// safeCall executes a handler with panic recovery so one bad packet only
// costs its own connection.
func (reg *Registry[S]) safeCall(entry *handlerEntry[S], s S, pkt *Packet) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Int("opcode", pkt.Opcode),
				zap.String("handler", entry.name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("%w: handler %s panicked: %v", ErrProtocol, entry.name, rec)
		}
	}()
	return entry.fn(s, pkt)
}
