package provider

// Method is a provider method name.
type Method string

// Kind says how a method is served.
type Kind int

const (
	KindUnsupported Kind = iota
	KindForwardedRead
	KindAccounts
	KindChainID
	KindSwitchChain
	KindSendTransaction
	KindPersonalSign
)

func (k Kind) String() string {
	switch k {
	case KindForwardedRead:
		return "forwarded_read"
	case KindAccounts:
		return "accounts"
	case KindChainID:
		return "chain_id"
	case KindSwitchChain:
		return "switch_chain"
	case KindSendTransaction:
		return "send_transaction"
	case KindPersonalSign:
		return "personal_sign"
	case KindUnsupported:
		return "unsupported"
	}
	return "unsupported"
}

const (
	MethodRequestAccounts     Method = "eth_requestAccounts"
	MethodAccounts            Method = "eth_accounts"
	MethodChainID             Method = "eth_chainId"
	MethodSwitchChain         Method = "wallet_switchEthereumChain"
	MethodSendTransaction     Method = "eth_sendTransaction"
	MethodPersonalSign        Method = "personal_sign"
	MethodBlockNumber         Method = "eth_blockNumber"
	MethodCall                Method = "eth_call"
	MethodEstimateGas         Method = "eth_estimateGas"
	MethodGetBalance          Method = "eth_getBalance"
	MethodGetCode             Method = "eth_getCode"
	MethodGetStorageAt        Method = "eth_getStorageAt"
	MethodGetBlockByNumber    Method = "eth_getBlockByNumber"
	MethodGetBlockByHash      Method = "eth_getBlockByHash"
	MethodGetTransaction      Method = "eth_getTransactionByHash"
	MethodGetReceipt          Method = "eth_getTransactionReceipt"
	MethodGetTransactionCount Method = "eth_getTransactionCount"
	MethodGasPrice            Method = "eth_gasPrice"
	MethodMaxPriorityFee      Method = "eth_maxPriorityFeePerGas"
	MethodFeeHistory          Method = "eth_feeHistory"
	MethodGetLogs             Method = "eth_getLogs"
	MethodNetVersion          Method = "net_version"
	MethodClientVersion       Method = "web3_clientVersion"
)

// methods is the complete dispatch table. Anything not listed is unsupported.
var methods = map[Method]Kind{
	MethodRequestAccounts:     KindAccounts,
	MethodAccounts:            KindAccounts,
	MethodChainID:             KindChainID,
	MethodSwitchChain:         KindSwitchChain,
	MethodSendTransaction:     KindSendTransaction,
	MethodPersonalSign:        KindPersonalSign,
	MethodBlockNumber:         KindForwardedRead,
	MethodCall:                KindForwardedRead,
	MethodEstimateGas:         KindForwardedRead,
	MethodGetBalance:          KindForwardedRead,
	MethodGetCode:             KindForwardedRead,
	MethodGetStorageAt:        KindForwardedRead,
	MethodGetBlockByNumber:    KindForwardedRead,
	MethodGetBlockByHash:      KindForwardedRead,
	MethodGetTransaction:      KindForwardedRead,
	MethodGetReceipt:          KindForwardedRead,
	MethodGetTransactionCount: KindForwardedRead,
	MethodGasPrice:            KindForwardedRead,
	MethodMaxPriorityFee:      KindForwardedRead,
	MethodFeeHistory:          KindForwardedRead,
	MethodGetLogs:             KindForwardedRead,
	MethodNetVersion:          KindForwardedRead,
	MethodClientVersion:       KindForwardedRead,
}

// Classify returns how method is served.
func Classify(method string) Kind {
	if kind, ok := methods[Method(method)]; ok {
		return kind
	}
	return KindUnsupported
}

// Methods returns every supported method.
func Methods() []Method {
	out := make([]Method, 0, len(methods))
	for method := range methods {
		out = append(out, method)
	}
	return out
}
