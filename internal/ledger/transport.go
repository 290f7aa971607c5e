package ledger

import "context"

// Transaction is the envelope a gateway hands to the ledger transport.
type Transaction struct {
	ID       string   `json:"id"`
	Channel  string   `json:"channel"`
	Contract string   `json:"contract"`
	Function string   `json:"function"`
	Args     []string `json:"args"`
	Creator  string   `json:"creator"`
	MSPID    string   `json:"mspId"`
}

type Receipt struct {
	TxID    string `json:"txId"`
	Height  int64  `json:"height"`
	Payload []byte `json:"payload,omitempty"`
}

// Transport carries transactions to the shared ledger. Submit must return only
// after the ledger has committed or refused the write.
type Transport interface {
	Submit(ctx context.Context, tx Transaction) (Receipt, error)
	Evaluate(ctx context.Context, tx Transaction) ([]byte, error)
	Close() error
}

// Dialer opens a transport to peer on behalf of id.
type Dialer func(ctx context.Context, peer Peer, id Identity) (Transport, error)
