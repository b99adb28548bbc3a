// Package history rebuilds the public transfer history of the token from chain logs.
// Nothing is stored between queries.
package history

import (
	"context"
	"math/big"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/contracts"
	"github.com/relieftoken/drt-client/internal/units"
)

type Kind string

const (
	KindMint     Kind = "mint"
	KindTransfer Kind = "transfer"
)

type Record struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	// RawAmount is the base-unit value in decimal, kept as a string so JSON clients do not
	// round it.
	RawAmount   string `json:"rawAmount"`
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint   `json:"logIndex"`
	TxHash      string `json:"transactionHash"`
	Kind        Kind   `json:"kind"`
}

type Config struct {
	MaxBlockRange uint64 `mapstructure:"maxBlockRange"`
}

type Querier struct {
	maxRange uint64
}

func New(cfg Config) *Querier {
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = constants.DefaultMaxBlockRange
	}
	return &Querier{maxRange: cfg.MaxBlockRange}
}

// Query fetches every Transfer of token from fromBlock to the current head, most recent
// first. Mints are Transfers from the zero address and are tagged, not altered.
func (q *Querier) Query(ctx context.Context, token *contracts.Token, fromBlock uint64) ([]Record, error) {
	head, err := token.Backend().HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperr.Network(err, "latest header")
	}
	latest := head.Number.Uint64()

	decimals, err := token.Decimals(ctx)
	if err != nil {
		log.Warn("token decimals unavailable, assuming default", "token", token.Address().Hex(), "error", err)
		decimals = constants.TokenDecimals
	}

	var records []Record
	for start := fromBlock; start <= latest; {
		end := min(start+q.maxRange-1, latest)

		logs, err := token.FilterLogs(ctx, "Transfer", new(big.Int).SetUint64(start), new(big.Int).SetUint64(end))
		if err != nil {
			return nil, errors.Wrapf(err, "transfers in blocks %d-%d", start, end)
		}
		for _, l := range logs {
			if l.Removed {
				continue
			}
			ev, err := token.UnpackTransfer(l)
			if err != nil {
				return nil, err
			}

			kind := KindTransfer
			if contracts.IsZero(ev.From) {
				kind = KindMint
			}
			records = append(records, Record{
				From:        ev.From.Hex(),
				To:          ev.To.Hex(),
				Amount:      units.FormatUnits(ev.Value, decimals),
				RawAmount:   ev.Value.String(),
				BlockNumber: l.BlockNumber,
				LogIndex:    l.Index,
				TxHash:      l.TxHash.Hex(),
				Kind:        kind,
			})
		}

		if end == latest {
			break
		}
		start = end + 1
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].BlockNumber != records[j].BlockNumber {
			return records[i].BlockNumber > records[j].BlockNumber
		}
		return records[i].LogIndex > records[j].LogIndex
	})
	return records, nil
}
