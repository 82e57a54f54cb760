package network

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/bitfsorg/libkaspa-go/tx"
	"github.com/bitfsorg/libkaspa-go/txscript"
)

// Compile-time interface check.
var _ Service = (*Client)(nil)

// jsonUint64 accepts both quoted and bare integers; the REST API serializes
// amounts as strings in some responses and as numbers in others.
type jsonUint64 uint64

func (u *jsonUint64) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: amount %s: %w", ErrInvalidResponse, data, err)
	}
	*u = jsonUint64(n)
	return nil
}

// utxoResponse maps one entry of GET /addresses/{address}/utxos.
type utxoResponse struct {
	Address  string      `json:"address"`
	Outpoint tx.Outpoint `json:"outpoint"`
	Entry    struct {
		Amount          jsonUint64 `json:"amount"`
		ScriptPublicKey struct {
			Script string `json:"scriptPublicKey"`
		} `json:"scriptPublicKey"`
		BlockDAAScore jsonUint64 `json:"blockDaaScore"`
		IsCoinbase    bool       `json:"isCoinbase"`
	} `json:"utxoEntry"`
}

// FetchUnspentOutputs returns the unspent outputs of address.
func (c *Client) FetchUnspentOutputs(ctx context.Context, address string) ([]tx.UnspentOutput, error) {
	if _, err := txscript.DecodeAddress(address); err != nil {
		return nil, err
	}
	var results []utxoResponse
	path := "/addresses/" + url.PathEscape(address) + "/utxos"
	if err := c.doIdempotent(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, fmt.Errorf("network: fetch utxos: %w", err)
	}

	utxos := make([]tx.UnspentOutput, len(results))
	for i, r := range results {
		script, err := hex.DecodeString(r.Entry.ScriptPublicKey.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: utxo %s script: %w", ErrInvalidResponse, r.Outpoint, err)
		}
		utxos[i] = tx.UnspentOutput{
			Outpoint: r.Outpoint,
			Amount:   uint64(r.Entry.Amount),
			Script:   script,
		}
	}
	c.log.Debug().Str("address", address).Int("count", len(utxos)).Msg("fetched utxos")
	return utxos, nil
}

// restInput, restOutput and restTransaction are the JSON transaction form
// accepted by the REST API.
type restInput struct {
	PreviousOutpoint tx.Outpoint `json:"previousOutpoint"`
	SignatureScript  string      `json:"signatureScript"`
	Sequence         uint64      `json:"sequence"`
	SigOpCount       uint8       `json:"sigOpCount"`
}

type restScriptPublicKey struct {
	Version         uint16 `json:"version"`
	ScriptPublicKey string `json:"scriptPublicKey"`
}

type restOutput struct {
	Amount          uint64              `json:"amount"`
	ScriptPublicKey restScriptPublicKey `json:"scriptPublicKey"`
}

type restTransaction struct {
	Version      uint16       `json:"version"`
	Inputs       []restInput  `json:"inputs"`
	Outputs      []restOutput `json:"outputs"`
	LockTime     uint64       `json:"lockTime"`
	SubnetworkID string       `json:"subnetworkId"`
	Gas          uint64       `json:"gas,omitempty"`
	Payload      string       `json:"payload,omitempty"`
}

// toREST parses raw and converts it to the REST JSON form.
func toREST(raw []byte) (*restTransaction, error) {
	t, err := tx.ParseTransaction(raw)
	if err != nil {
		return nil, err
	}
	out := &restTransaction{
		Version:      t.Version,
		Inputs:       make([]restInput, len(t.Inputs)),
		Outputs:      make([]restOutput, len(t.Outputs)),
		LockTime:     t.LockTime,
		SubnetworkID: hex.EncodeToString(t.SubnetworkID[:]),
		Gas:          t.Gas,
		Payload:      hex.EncodeToString(t.Payload),
	}
	for i, in := range t.Inputs {
		out.Inputs[i] = restInput{
			PreviousOutpoint: in.PreviousOutpoint,
			SignatureScript:  hex.EncodeToString(in.SignatureScript),
			Sequence:         in.Sequence,
			SigOpCount:       in.SigOpCount,
		}
	}
	for i, o := range t.Outputs {
		out.Outputs[i] = restOutput{
			Amount: o.Amount,
			ScriptPublicKey: restScriptPublicKey{
				Version:         tx.ScriptVersion,
				ScriptPublicKey: hex.EncodeToString(o.ScriptPublicKey),
			},
		}
	}
	return out, nil
}

type submitRequest struct {
	Transaction *restTransaction `json:"transaction"`
	AllowOrphan bool             `json:"allowOrphan"`
}

type submitResponse struct {
	TransactionID string `json:"transactionId"`
	Error         string `json:"error"`
}

// Broadcast submits raw and returns the id the node assigned. An empty id in
// the response is returned as the zero Hash. Failures are reported as
// *tx.BroadcastError carrying the hex transaction.
func (c *Client) Broadcast(ctx context.Context, raw []byte) (tx.Hash, error) {
	body, err := toREST(raw)
	if err != nil {
		return tx.Hash{}, fmt.Errorf("network: broadcast: %w", err)
	}
	fail := func(err error) (tx.Hash, error) {
		return tx.Hash{}, &tx.BroadcastError{RawTx: hex.EncodeToString(raw), Err: err}
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/transactions", submitRequest{Transaction: body}, &resp); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrBroadcastRejected, err))
	}
	if resp.Error != "" {
		return fail(fmt.Errorf("%w: %s", ErrBroadcastRejected, resp.Error))
	}
	if resp.TransactionID == "" {
		return tx.Hash{}, nil
	}
	id, err := tx.HashFromString(resp.TransactionID)
	if err != nil {
		return fail(fmt.Errorf("%w: transaction id: %w", ErrInvalidResponse, err))
	}
	return id, nil
}

type massResponse struct {
	Mass        uint64 `json:"mass"`
	StorageMass uint64 `json:"storage_mass"`
	ComputeMass uint64 `json:"compute_mass"`
}

// EstimateMass asks the API for the mass of raw. The largest of the
// reported masses is the one fees are charged on.
func (c *Client) EstimateMass(ctx context.Context, raw []byte) (uint64, error) {
	body, err := toREST(raw)
	if err != nil {
		return 0, fmt.Errorf("network: estimate mass: %w", err)
	}
	var resp massResponse
	if err := c.doIdempotent(ctx, http.MethodPost, "/transactions/mass", body, &resp); err != nil {
		return 0, fmt.Errorf("network: estimate mass: %w", err)
	}
	mass := max(resp.Mass, resp.StorageMass, resp.ComputeMass)
	if mass == 0 {
		return 0, fmt.Errorf("%w: zero mass", ErrInvalidResponse)
	}
	return mass, nil
}

type feeBucket struct {
	FeeRate          json.Number `json:"feerate"`
	EstimatedSeconds json.Number `json:"estimatedSeconds"`
}

type feeEstimateResponse struct {
	PriorityBucket feeBucket   `json:"priorityBucket"`
	NormalBuckets  []feeBucket `json:"normalBuckets"`
	LowBuckets     []feeBucket `json:"lowBuckets"`
}

// CurrentFeeRate returns the fee rate of the first normal-priority bucket in
// sompi per gram, never below tx.DefaultFeeRate.
func (c *Client) CurrentFeeRate(ctx context.Context) (decimal.Decimal, error) {
	var resp feeEstimateResponse
	if err := c.doIdempotent(ctx, http.MethodGet, "/info/fee-estimate", nil, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("network: fee estimate: %w", err)
	}
	bucket := resp.PriorityBucket
	if len(resp.NormalBuckets) > 0 {
		bucket = resp.NormalBuckets[0]
	}
	if bucket.FeeRate == "" {
		return decimal.Zero, fmt.Errorf("%w: no fee buckets", ErrInvalidResponse)
	}
	rate, err := decimal.NewFromString(bucket.FeeRate.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: feerate %q: %w", ErrInvalidResponse, bucket.FeeRate, err)
	}
	if rate.LessThan(tx.DefaultFeeRate) {
		rate = tx.DefaultFeeRate
	}
	return rate, nil
}
