package entity

// AssetKind distinguishes the chain's base currency from contract-backed tokens.
type AssetKind int

const (
	// NativeAsset is the chain's base currency, transferred without a contract call.
	NativeAsset AssetKind = iota
	// FungibleToken is an ERC-20 style token identified by its contract address.
	FungibleToken
)

// ZeroAddress represents the Ethereum zero address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Asset describes one transferable asset from the registry.
// Immutable after process start; Symbol is the unique key.
type Asset struct {
	Symbol          string    `json:"symbol" yaml:"symbol"`
	Name            string    `json:"name" yaml:"name"`
	Decimals        uint8     `json:"decimals" yaml:"decimals"`
	Kind            AssetKind `json:"-" yaml:"-"`
	ContractAddress string    `json:"contractAddress,omitempty" yaml:"contractAddress,omitempty"`
}

// IsNative reports whether the asset is the chain's base currency.
func (a Asset) IsNative() bool {
	return a.Kind == NativeAsset
}
