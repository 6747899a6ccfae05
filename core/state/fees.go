package state

var (
	feeBpsKey       = []byte("fees/bps")
	feeCollectorKey = []byte("fees/collector")
)

// FeeBpsPut stores the platform fee parameter.
func (m *Manager) FeeBpsPut(bps uint64) error {
	return m.KVPut(feeBpsKey, bps)
}

// FeeBpsGet loads the platform fee parameter.
func (m *Manager) FeeBpsGet() (uint64, bool, error) {
	var bps uint64
	ok, err := m.KVGet(feeBpsKey, &bps)
	if err != nil || !ok {
		return 0, false, err
	}
	return bps, true, nil
}

// CollectorPut stores the wallet that receives platform fees.
func (m *Manager) CollectorPut(addr [20]byte) error {
	return m.KVPut(feeCollectorKey, addr[:])
}

// CollectorGet loads the fee collector wallet.
func (m *Manager) CollectorGet() ([20]byte, bool, error) {
	var raw []byte
	ok, err := m.KVGet(feeCollectorKey, &raw)
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
