package network

import "github.com/bitfsorg/libkaspa-go/tx"

// Service is everything a wallet needs from the network: UTXO listing,
// transaction submission, mass estimation and the current fee rate.
type Service interface {
	tx.UTXOSource
	tx.Broadcaster
	tx.MassEstimator
	tx.FeeRateSource
}
