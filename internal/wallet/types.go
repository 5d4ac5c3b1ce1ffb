package wallet

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Signature is the raw output of a device signing primitive.
// R and S are 32-byte big-endian values, V is whatever the device reported:
// chain-encoded for legacy transactions, y-parity for typed transactions and
// 27/28 for personal messages.
type Signature struct {
	R [32]byte
	S [32]byte
	V uint64
}

// NewSignature builds a Signature from big-endian r and s values.
func NewSignature(r, s []byte, v uint64) Signature {
	var sig Signature
	copy(sig.R[32-min(len(r), 32):], r)
	copy(sig.S[32-min(len(s), 32):], s)
	sig.V = v
	return sig
}

// Bytes returns the 65-byte r ++ s ++ v encoding with v truncated to a byte.
func (s Signature) Bytes() []byte {
	out := make([]byte, 0, 65)
	out = append(out, s.R[:]...)
	out = append(out, s.S[:]...)
	return append(out, byte(s.V))
}

// RBig returns r as a big integer.
func (s Signature) RBig() *big.Int { return new(big.Int).SetBytes(s.R[:]) }

// SBig returns s as a big integer.
func (s Signature) SBig() *big.Int { return new(big.Int).SetBytes(s.S[:]) }

// Resolution is the auxiliary metadata passed with a raw transaction so the
// device can render a readable approval screen. Every field must be present and
// iterable, some firmware versions crash on a missing collection.
type Resolution struct {
	ERC20Tokens    []HexDescriptor  `json:"erc20Tokens"`
	NFTs           []HexDescriptor  `json:"nfts"`
	ExternalPlugin []PluginPayload  `json:"externalPlugin"`
	Plugin         []HexDescriptor  `json:"plugin"`
	Domains        []DomainResolved `json:"domains"`
}

// HexDescriptor is a signed descriptor blob as produced by the Ledger CAL.
type HexDescriptor []byte

// MarshalText encodes the descriptor as bare hex.
func (d HexDescriptor) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(d)), nil
}

// PluginPayload is an external plugin descriptor together with its signature.
type PluginPayload struct {
	Payload   HexDescriptor `json:"payload"`
	Signature HexDescriptor `json:"signature"`
}

// DomainResolved describes a resolved name service entry.
type DomainResolved struct {
	Domain   string         `json:"domain"`
	Address  common.Address `json:"address"`
	Registry string         `json:"registry"`
	Type     string         `json:"type"`
}

// NewResolution returns a resolution context with every collection present and empty.
func NewResolution() Resolution {
	return Resolution{
		ERC20Tokens:    []HexDescriptor{},
		NFTs:           []HexDescriptor{},
		ExternalPlugin: []PluginPayload{},
		Plugin:         []HexDescriptor{},
		Domains:        []DomainResolved{},
	}
}

// Normalized returns a copy of r in which every nil collection is replaced by an empty one.
func (r Resolution) Normalized() Resolution {
	if r.ERC20Tokens == nil {
		r.ERC20Tokens = []HexDescriptor{}
	}
	if r.NFTs == nil {
		r.NFTs = []HexDescriptor{}
	}
	if r.ExternalPlugin == nil {
		r.ExternalPlugin = []PluginPayload{}
	}
	if r.Plugin == nil {
		r.Plugin = []HexDescriptor{}
	}
	if r.Domains == nil {
		r.Domains = []DomainResolved{}
	}
	return r
}
