// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// ErrNoActiveClients is returned when the pool was built without nodes.
var ErrNoActiveClients = errors.New("no RPC nodes configured")

// Error tags a failed call with the method and the node that served it.
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s via %s: %v", e.Method, e.NodeURL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(err error, nodeURL, method string) error {
	return &Error{Err: err, NodeURL: nodeURL, Method: method}
}

// IsNodeFailure reports whether err says nothing about the request itself:
// the node did not answer with a JSON-RPC error object.
func IsNodeFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	return !errors.As(err, &rpcErr)
}
