package thumbgrid

// Close stops the Loader: pending settles are abandoned, in-flight decodes
// are cancelled and awaited, and the cache is cleared. Close is idempotent;
// triggers after Close return ErrClosed.
//
// A dispatcher passed with WithDispatcher is not stopped.
func (l *Loader) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)

		l.coalescer.Close()
		l.supervisor.Close()
		l.batcher.Close()

		if l.ownLoop != nil {
			l.ownLoop.Close()
		}
		if l.disk != nil {
			l.closeErr = l.disk.Close()
		}
		l.cache.Clear()
	})
	return l.closeErr
}
