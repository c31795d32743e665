package negotiation

// Emitter is the outbound side of the realtime channel.
type Emitter interface {
	Emit(event string, data interface{}) error
}
