package assetloader

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"wallet_gateway/internal/app/port"
	"wallet_gateway/internal/domain/entity"
)

// Registry is the immutable ordered catalog of transferable assets.
// It is built once at process start; no mutation is exposed.
type Registry struct {
	assets   []entity.Asset
	bySymbol map[string]entity.Asset
}

// defaultAssets is the built-in catalog: the chain's native coin plus Tether
// on Goerli.
var defaultAssets = []entity.Asset{
	{
		Symbol:   "ETH",
		Name:     "Ethereum",
		Decimals: 18,
		Kind:     entity.NativeAsset,
	},
	{
		Symbol:          "USDT",
		Name:            "Tether USD",
		Decimals:        6,
		Kind:            entity.FungibleToken,
		ContractAddress: "0xD9BA894E0097f8cC2BBc9D24D308b98e36dc6D02",
	},
}

// assetFileEntry is the JSON shape of one catalog file record. Kind is
// inferred: records without a contract address are rejected since the native
// asset is always present.
type assetFileEntry struct {
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	Decimals        uint8  `json:"decimals"`
	ContractAddress string `json:"contractAddress"`
}

// NewRegistry builds the registry from the built-in defaults plus an optional
// JSON catalog file of extra fungible tokens. A later entry with an existing
// symbol replaces the earlier one.
func NewRegistry(catalogPath string, log port.Logger) (*Registry, error) {
	assets := make([]entity.Asset, len(defaultAssets))
	copy(assets, defaultAssets)

	if catalogPath != "" {
		extra, err := loadCatalogFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load asset catalog %s: %w", catalogPath, err)
		}
		for _, a := range extra {
			assets = upsert(assets, a)
		}
		log.Info("Loaded extra assets from catalog", "path", catalogPath, "count", len(extra))
	}

	bySymbol := make(map[string]entity.Asset, len(assets))
	for _, a := range assets {
		bySymbol[strings.ToUpper(a.Symbol)] = a
	}

	log.Info("Asset registry initialized", "assets", len(assets))
	return &Registry{assets: assets, bySymbol: bySymbol}, nil
}

func loadCatalogFile(path string) ([]entity.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []assetFileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	assets := make([]entity.Asset, 0, len(entries))
	for _, e := range entries {
		if e.Symbol == "" {
			return nil, fmt.Errorf("asset entry with empty symbol")
		}
		if e.ContractAddress == "" {
			return nil, fmt.Errorf("asset %s has no contract address; only fungible tokens may be added", e.Symbol)
		}
		assets = append(assets, entity.Asset{
			Symbol:          e.Symbol,
			Name:            e.Name,
			Decimals:        e.Decimals,
			Kind:            entity.FungibleToken,
			ContractAddress: e.ContractAddress,
		})
	}
	return assets, nil
}

func upsert(assets []entity.Asset, a entity.Asset) []entity.Asset {
	for i, existing := range assets {
		if strings.EqualFold(existing.Symbol, a.Symbol) {
			assets[i] = a
			return assets
		}
	}
	return append(assets, a)
}

// All returns the assets in catalog order. The slice is a copy.
func (r *Registry) All() []entity.Asset {
	out := make([]entity.Asset, len(r.assets))
	copy(out, r.assets)
	return out
}

// BySymbol looks an asset up by its symbol, case-insensitively.
func (r *Registry) BySymbol(symbol string) (entity.Asset, bool) {
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// Native returns the registry's native asset.
func (r *Registry) Native() entity.Asset {
	for _, a := range r.assets {
		if a.IsNative() {
			return a
		}
	}
	// The built-in defaults always carry a native asset.
	return defaultAssets[0]
}
