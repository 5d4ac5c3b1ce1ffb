package network

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Methods used internally by the bridge.
const (
	MethodChainID               = "eth_chainId"
	MethodGetTransactionCount   = "eth_getTransactionCount"
	MethodGasPrice              = "eth_gasPrice"
	MethodEstimateGas           = "eth_estimateGas"
	MethodGetBlockByNumber      = "eth_getBlockByNumber"
	MethodSendRawTransaction    = "eth_sendRawTransaction"
	MethodGetTransactionReceipt = "eth_getTransactionReceipt"
)

// CallMsg is the transaction object accepted by eth_estimateGas.
type CallMsg struct {
	From                 *common.Address `json:"from,omitempty"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
}

type blockHeader struct {
	Number  *hexutil.Big `json:"number"`
	BaseFee *hexutil.Big `json:"baseFeePerGas"`
}
