// Package rpc talks JSON-RPC to an Ethereum node.
//
// Transport is the wire collaborator; HTTPTransport is the implementation
// shipped here. Client layers typed eth_* helpers over any Transport.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ABT-Tech-Limited/evmkit/abi"
	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/hexutil"
	"github.com/ABT-Tech-Limited/evmkit/tx"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// Block tags accepted by TransactionCount and Call.
const (
	Latest  = "latest"
	Pending = "pending"
)

// Client wraps a Transport with typed methods.
type Client struct {
	t Transport
}

// NewClient returns a Client over t.
func NewClient(t Transport) *Client {
	return &Client{t: t}
}

// CallMsg is the call object of eth_call and eth_estimateGas.
type CallMsg struct {
	From     *types.Address  `json:"from,omitempty"`
	To       *types.Address  `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

func (c *Client) quantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	var out hexutil.Big
	if err := c.t.Send(ctx, method, append([]any{}, params...), &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

func (c *Client) uint64(ctx context.Context, method string, params ...any) (uint64, error) {
	var out hexutil.Uint64
	if err := c.t.Send(ctx, method, append([]any{}, params...), &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// ChainID returns eth_chainId.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_chainId")
}

// BlockNumber returns eth_blockNumber.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.uint64(ctx, "eth_blockNumber")
}

// TransactionCount returns the nonce of addr at block (Latest, Pending or
// a hex number).
func (c *Client) TransactionCount(ctx context.Context, addr types.Address, block string) (uint64, error) {
	return c.uint64(ctx, "eth_getTransactionCount", addr, block)
}

// GasPrice returns eth_gasPrice.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_gasPrice")
}

// MaxPriorityFeePerGas returns eth_maxPriorityFeePerGas.
func (c *Client) MaxPriorityFeePerGas(ctx context.Context) (*big.Int, error) {
	return c.quantity(ctx, "eth_maxPriorityFeePerGas")
}

// EstimateGas returns eth_estimateGas for msg.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	return c.uint64(ctx, "eth_estimateGas", msg)
}

// Call executes eth_call and returns the raw return data.
func (c *Client) Call(ctx context.Context, msg CallMsg, block string) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.t.Send(ctx, "eth_call", []any{msg, block}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CallFunction encodes a call to fn on contract to, executes it at the
// latest block and decodes the outputs. A revert is returned as
// *abi.RevertError when the node includes the revert data.
func (c *Client) CallFunction(ctx context.Context, to types.Address, fn abi.Function, args ...any) ([]any, error) {
	data, err := fn.EncodeCall(args...)
	if err != nil {
		return nil, err
	}
	out, err := c.Call(ctx, CallMsg{To: &to, Data: data}, Latest)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			if revert, ok := rpcErr.RevertData(); ok {
				return nil, abi.NewRevertError(revert)
			}
		}
		return nil, err
	}
	return fn.DecodeOutput(out)
}

// SendRawTransaction broadcasts a signed envelope and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (types.Hash, error) {
	var h types.Hash
	if err := c.t.Send(ctx, "eth_sendRawTransaction", []any{hexutil.Bytes(raw)}, &h); err != nil {
		return types.Hash{}, err
	}
	return h, nil
}

// SendTransaction fills the nonce, chain id, fees and gas limit of t when
// they are absent, signs it with acc and broadcasts it. t is not modified.
func (c *Client) SendTransaction(ctx context.Context, acc *account.Account, t *tx.Transaction) (*tx.Signed, error) {
	filled, err := c.Fill(ctx, acc.Address(), t)
	if err != nil {
		return nil, err
	}
	signed, err := acc.SignTransaction(ctx, filled)
	if err != nil {
		return nil, err
	}
	h, err := c.SendRawTransaction(ctx, signed.Raw)
	if err != nil {
		return nil, err
	}
	if h != signed.Hash {
		return nil, fmt.Errorf("rpc: node returned hash %s, expected %s", h, signed.Hash)
	}
	return signed, nil
}

// Fill returns a copy of t with missing nonce, chain id, fee and gas
// fields queried from the node.
func (c *Client) Fill(ctx context.Context, from types.Address, t *tx.Transaction) (*tx.Transaction, error) {
	cp := *t
	if cp.From == nil {
		cp.From = &from
	}
	var err error
	if cp.ChainID == nil {
		if cp.ChainID, err = c.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("chain id: %w", err)
		}
	}
	if cp.Nonce == nil {
		n, err := c.TransactionCount(ctx, *cp.From, Pending)
		if err != nil {
			return nil, fmt.Errorf("nonce: %w", err)
		}
		cp.Nonce = tx.Uint64(n)
	}

	switch cp.Type {
	case tx.LegacyType:
		if cp.GasPrice == nil {
			if cp.GasPrice, err = c.GasPrice(ctx); err != nil {
				return nil, fmt.Errorf("gas price: %w", err)
			}
		}
	default:
		if cp.MaxPriorityFeePerGas == nil {
			if cp.MaxPriorityFeePerGas, err = c.MaxPriorityFeePerGas(ctx); err != nil {
				return nil, fmt.Errorf("priority fee: %w", err)
			}
		}
		if cp.MaxFeePerGas == nil {
			price, err := c.GasPrice(ctx)
			if err != nil {
				return nil, fmt.Errorf("gas price: %w", err)
			}
			// room for the base fee to double
			cp.MaxFeePerGas = new(big.Int).Add(new(big.Int).Mul(price, big.NewInt(2)), cp.MaxPriorityFeePerGas)
		}
	}

	if cp.GasLimit == nil {
		msg := CallMsg{From: cp.From, To: cp.To, Data: cp.Data}
		if cp.Value != nil {
			msg.Value = (*hexutil.Big)(cp.Value)
		}
		gas, err := c.EstimateGas(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		cp.GasLimit = tx.Uint64(gas)
	}
	return &cp, nil
}
