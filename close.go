package vecmesh

// Close stops the background migration scheduler and waits for in-flight
// migrations to park. Suspended migrations stay resumable through the
// ledger cursor.
func (m *Mesh) Close() error {
	if m == nil {
		return nil
	}

	m.closeOnce.Do(func() {
		m.scheduler.Close()
	})

	return nil
}
