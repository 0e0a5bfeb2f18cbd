package identity

// EventType names a session change.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserRegistered EventType = "USER_REGISTERED"
)

// Event is delivered to subscribers after a session change.
type Event struct {
	Type   EventType
	UserID string
	Email  string
}

// Subscribe registers fn for session changes and returns a function that
// removes it. Handlers run synchronously on the caller's goroutine.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Service) emit(e Event) {
	s.subMu.RLock()
	handlers := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		handlers = append(handlers, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}
