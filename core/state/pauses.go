package state

import "fmt"

const pauseKeyFmt = "pause/%s"

// PausePut flips the administrative halt flag for a module.
func (m *Manager) PausePut(module string, paused bool) error {
	return m.KVPut([]byte(fmt.Sprintf(pauseKeyFmt, module)), paused)
}

// IsPaused reports whether a module has been administratively halted. Read
// errors surface as not-paused so a broken flag never bricks the system.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.KVGet([]byte(fmt.Sprintf(pauseKeyFmt, module)), &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}
