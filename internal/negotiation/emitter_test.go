package negotiation

import "sync"

type sentMessage struct {
	event string
	data  interface{}
}

type fakeEmitter struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeEmitter) Emit(event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{event: event, data: data})
	return nil
}

func (f *fakeEmitter) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}
