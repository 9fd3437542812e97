package state

import (
	"fmt"
	"sort"

	nativecommon "rentchain/native/common"
)

// SetPaused flips the pause flag of a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if !nativecommon.KnownModule(module) {
		return fmt.Errorf("state: unknown module %q", module)
	}
	return m.KVPut([]byte(systemPausePrefix+module), paused)
}

// IsPaused reports whether mutating calls into module are blocked. A state
// read failure is treated as paused.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	if _, err := m.KVGet([]byte(systemPausePrefix+module), &paused); err != nil {
		return true
	}
	return paused
}

// PausedModules lists the currently paused modules in name order.
func (m *Manager) PausedModules() []string {
	var out []string
	for _, module := range nativecommon.Modules {
		if m.IsPaused(module) {
			out = append(out, module)
		}
	}
	sort.Strings(out)
	return out
}

// SetAdmin records the chain administrator.
func (m *Manager) SetAdmin(addr [20]byte) error {
	return m.KVPut(systemAdminKey, addr)
}

// Admin returns the chain administrator, if one was configured at genesis.
func (m *Manager) Admin() ([20]byte, bool, error) {
	var addr [20]byte
	ok, err := m.KVGet(systemAdminKey, &addr)
	return addr, ok, err
}

// LedgerTime returns the last committed ledger timestamp.
func (m *Manager) LedgerTime() (uint64, error) {
	var ts uint64
	if _, err := m.KVGet(systemLedgerTimestamp, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// SetLedgerTime stores the ledger timestamp of the current execution unit.
func (m *Manager) SetLedgerTime(ts uint64) error {
	return m.KVPut(systemLedgerTimestamp, ts)
}
