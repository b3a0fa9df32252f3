package session

import "fmt"

// XPhereTestnetChainID is the chain the SmartCard contract is deployed on
const XPhereTestnetChainID uint64 = 0x1e808f

// UnknownNetwork names chain IDs missing from the table
const UnknownNetwork = "Unknown Network"

// Network describes a chain the wallet can be connected to
type Network struct {
	Name        string `json:"name"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	ChainID     uint64 `json:"chain_id"`
}

// ChainIDHex renders the chain ID the way wallets report it, e.g. 0x1e808f
func (n Network) ChainIDHex() string {
	return fmt.Sprintf("%#x", n.ChainID)
}

// TxURL links a transaction hash on the network's block explorer, or returns
// "" when the network has none.
func (n Network) TxURL(txHash string) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return n.ExplorerURL + txHash
}

var networks = map[uint64]Network{
	0x1:                  {ChainID: 0x1, Name: "Ethereum Mainnet", ExplorerURL: "https://etherscan.io/tx/"},
	0xaa36a7:             {ChainID: 0xaa36a7, Name: "Sepolia", ExplorerURL: "https://sepolia.etherscan.io/tx/"},
	0x7a69:               {ChainID: 0x7a69, Name: "Localhost"},
	XPhereTestnetChainID: {ChainID: XPhereTestnetChainID, Name: "XPhere-Testnet", ExplorerURL: "https://xpt.tamsa.io/tx/"},
}

// LookupNetwork resolves a chain ID to its network. Unlisted chains come
// back named UnknownNetwork.
func LookupNetwork(chainID uint64) Network {
	if n, ok := networks[chainID]; ok {
		return n
	}
	return Network{ChainID: chainID, Name: UnknownNetwork}
}
