package landgo

import "context"

// Close flushes pending distance writes and releases the session. Further
// operations return ErrClosed. Close is idempotent.
//
// A store created by the builder is closed with the session; a store passed
// to Open stays open and remains the caller's responsibility.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var firstErr error

	// Best-effort flush so computed distances survive the shutdown.
	if _, err := s.cache.FlushPending(context.Background(), true); err != nil && firstErr == nil {
		firstErr = translateError(err)
	}

	if s.ownsStore {
		if err := s.st.Close(); err != nil && firstErr == nil {
			firstErr = translateError(err)
		}
	}

	return firstErr
}
