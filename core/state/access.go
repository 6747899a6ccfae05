package state

var ownerKey = []byte("access/owner")

// OwnerPut stores the singleton owner record.
func (m *Manager) OwnerPut(addr [20]byte) error {
	return m.KVPut(ownerKey, addr[:])
}

// OwnerGet loads the singleton owner record.
func (m *Manager) OwnerGet() ([20]byte, bool, error) {
	var raw []byte
	ok, err := m.KVGet(ownerKey, &raw)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	if len(raw) != 20 {
		return [20]byte{}, false, err
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, true, nil
}
