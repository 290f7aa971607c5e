package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	cmthttp "github.com/cometbft/cometbft/rpc/client/http"
)

// CometTransport submits transactions to a CometBFT node over its RPC endpoint.
// Writes use broadcast_tx_commit, reads use abci_query at /<contract>/<function>.
type CometTransport struct {
	rpc *cmthttp.HTTP
}

// NewCometDialer returns a Dialer bound to an HTTP client with the given timeout.
func NewCometDialer(timeout time.Duration) Dialer {
	return func(_ context.Context, peer Peer, _ Identity) (Transport, error) {
		rpc, err := cmthttp.NewWithClient(peer.URL, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("create cometbft client for %s: %w", peer.URL, err)
		}
		return &CometTransport{rpc: rpc}, nil
	}
}

func (c *CometTransport) Submit(ctx context.Context, tx Transaction) (Receipt, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return Receipt{}, err
	}
	res, err := c.rpc.BroadcastTxCommit(ctx, payload)
	if err != nil {
		return Receipt{}, err
	}
	if res.CheckTx.Code != 0 {
		return Receipt{}, fmt.Errorf("%w: check_tx code=%d log=%s", ErrLedgerRejected, res.CheckTx.Code, res.CheckTx.Log)
	}
	if res.TxResult.Code != 0 {
		return Receipt{}, fmt.Errorf("%w: exec code=%d log=%s", ErrLedgerRejected, res.TxResult.Code, res.TxResult.Log)
	}
	return Receipt{
		TxID:    res.Hash.String(),
		Height:  res.Height,
		Payload: res.TxResult.Data,
	}, nil
}

func (c *CometTransport) Evaluate(ctx context.Context, tx Transaction) ([]byte, error) {
	data, err := json.Marshal(tx.Args)
	if err != nil {
		return nil, err
	}
	res, err := c.rpc.ABCIQuery(ctx, "/"+tx.Contract+"/"+tx.Function, data)
	if err != nil {
		return nil, err
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("%w: query code=%d log=%s", ErrLedgerRejected, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

func (c *CometTransport) Close() error {
	c.rpc = nil
	return nil
}
