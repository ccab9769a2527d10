// Package chainws speaks JSON-RPC over websocket to a chain endpoint: log
// subscriptions for the monitoring loop and one-shot calls for queries.
package chainws

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
)

// TransferTopic is the topic0 of the standard ERC-20 Transfer event,
// keccak256("Transfer(address,address,uint256)").
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

const (
	handshakeTimeout = 30 * time.Second
	callTimeout      = 10 * time.Second
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcMessage struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Log is a JSON-RPC log notification payload.
type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}

// Transfer is a decoded ERC-20 Transfer event.
type Transfer struct {
	From    common.Address
	To      common.Address
	Amount  *big.Int
	TxHash  string
	Removed bool
	logIdx  string
}

// EventID identifies the transfer for dedup purposes. The same transaction
// delivered twice (e.g. across a reconnect replaying a range) produces the
// same id.
func (t *Transfer) EventID() string {
	return t.TxHash + ":" + t.logIdx
}

// DecodeTransfer decodes a Transfer log. Malformed logs return an error the
// subscriber logs and skips.
func DecodeTransfer(lg *Log) (*Transfer, error) {
	if len(lg.Topics) != 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}
	if !strings.EqualFold(lg.Topics[0], TransferTopic) {
		return nil, fmt.Errorf("unexpected topic0 %s", lg.Topics[0])
	}
	from, err := addressFromTopic(lg.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("from topic: %w", err)
	}
	to, err := addressFromTopic(lg.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("to topic: %w", err)
	}
	data := common.FromHex(lg.Data)
	if len(data) != 32 {
		return nil, fmt.Errorf("expected 32 data bytes, got %d", len(data))
	}
	return &Transfer{
		From:    from,
		To:      to,
		Amount:  new(big.Int).SetBytes(data),
		TxHash:  lg.TransactionHash,
		Removed: lg.Removed,
		logIdx:  lg.LogIndex,
	}, nil
}

func addressFromTopic(topic string) (common.Address, error) {
	b := common.FromHex(topic)
	if len(b) != 32 {
		return common.Address{}, fmt.Errorf("expected 32 topic bytes, got %d", len(b))
	}
	return common.BytesToAddress(b[12:]), nil
}

// Conn is a live websocket connection. Writes are serialized; reads belong
// to a single loop.
type Conn struct {
	ws    *websocket.Conn
	wmu   sync.Mutex
	reqID int64
}

// Dial opens a websocket connection with a bounded handshake.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Close releases the connection. Safe to call from another goroutine to
// unblock a pending read.
func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) send(req rpcRequest) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(req)
}

func (c *Conn) nextID() int64 {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.reqID++
	return c.reqID
}

// call performs a request/response exchange. Only valid before the
// subscription read loop takes over the connection.
func (c *Conn) call(method string, params []any) (json.RawMessage, error) {
	id := c.nextID()
	if err := c.send(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	deadline := time.Now().Add(callTimeout)
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		var msg rpcMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("read %s response: %w", method, err)
		}
		// Skip interleaved notifications.
		if msg.ID == nil || *msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg.Result, nil
	}
}

// SubscribeLogs subscribes to Transfer logs emitted by the token contract.
// Recipients are matched against the registry per event, so the wallet set
// can change without resubscribing.
func (c *Conn) SubscribeLogs(token string) (string, error) {
	result, err := c.call("eth_subscribe", []any{
		"logs",
		map[string]any{
			"address": token,
			"topics":  []any{TransferTopic},
		},
	})
	if err != nil {
		return "", fmt.Errorf("eth_subscribe: %w", err)
	}
	var subID string
	if err := json.Unmarshal(result, &subID); err != nil {
		return "", fmt.Errorf("parse subscription id: %w", err)
	}
	return subID, nil
}

// ReadLog blocks until the next log notification arrives. Non-log frames
// (errors from the server, stray responses) are returned as DecodeError-class
// failures so the caller can log and continue.
func (c *Conn) ReadLog() (*Log, error) {
	var msg rpcMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if msg.Method != "eth_subscription" || msg.Params == nil {
		return nil, &NonLogFrameError{Raw: msg}
	}
	var lg Log
	if err := json.Unmarshal(msg.Params.Result, &lg); err != nil {
		return nil, &NonLogFrameError{Raw: msg}
	}
	return &lg, nil
}

// NonLogFrameError marks a frame that is not a log notification. It is
// recoverable: the read loop logs it and keeps reading.
type NonLogFrameError struct {
	Raw rpcMessage
}

func (e *NonLogFrameError) Error() string {
	return "unexpected frame from subscription stream"
}

// Call opens a short-lived connection, performs one JSON-RPC call, and
// closes it. Used for ad-hoc queries such as wallet balances.
func Call(ctx context.Context, url, method string, params []any) (json.RawMessage, error) {
	conn, err := Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.call(method, params)
}
