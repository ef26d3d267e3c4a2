package entity

// SessionStatus is the connection state of the wallet session.
type SessionStatus int

const (
	// Disconnected is the initial state; no account or network is attached.
	Disconnected SessionStatus = iota
	// Connecting means a provider connect request is in flight.
	Connecting
	// Connected means an account and network are attached.
	Connected
)

// String returns the status name for logs and API snapshots.
func (s SessionStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// WalletSession is a point-in-time snapshot of the session state.
// Balances are decimal strings in the asset's display unit and are only
// meaningful while Status is Connected and Account is non-empty.
type WalletSession struct {
	Status        SessionStatus     `json:"-"`
	Account       string            `json:"account"`
	Network       string            `json:"network"`
	NativeBalance string            `json:"nativeBalance"`
	TokenBalances map[string]string `json:"tokenBalances"`
	SelectedAsset string            `json:"selectedAsset"`
}

// TruncateAddress shortens an address or hash to the form the UI renders,
// e.g. "0xd8dA6B...6045". Short inputs are returned unchanged.
func TruncateAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
