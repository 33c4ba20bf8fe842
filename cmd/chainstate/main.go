// Package main implements chainstate, a command-line tool that inspects a node's chain state store
// and its persisted fee estimates without starting the node.
//
// Usage:
//
//	chainstate [--store <url>] best
//	chainstate [--store <url>] coin --txid <txid>
//	chainstate [--store <url>] history --epoch <branch id>
//	chainstate feeestimates --file <path>
//
// The store url defaults to the coins_store setting.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"net/url"
	"os"
	"strconv"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/shieldnode/shieldnode/errors"
	"github.com/shieldnode/shieldnode/model"
	"github.com/shieldnode/shieldnode/services/mempool"
	"github.com/shieldnode/shieldnode/settings"
	"github.com/shieldnode/shieldnode/stores/coins"
	"github.com/shieldnode/shieldnode/stores/coins/factory"
	"github.com/shieldnode/shieldnode/ulogger"
	"github.com/urfave/cli/v2"
)

// estimates are printed for targets 1 up to this many blocks
const maxEstimateTarget = 25

var logger = ulogger.New("chainstate")

func main() {
	app := &cli.App{
		Name:  "chainstate",
		Usage: "Inspect the chain state store and fee estimates of a node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Usage: "Coins store url, overriding the coins_store setting",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "best",
				Usage:  "Print the best block and the best anchor of every shielded pool",
				Action: best,
			},
			{
				Name:   "coin",
				Usage:  "Print the unspent outputs of a transaction",
				Action: coin,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "txid",
						Usage:    "Transaction id",
						Required: true,
					},
				},
			},
			{
				Name:   "history",
				Usage:  "Print the length and root of the history tree of an epoch",
				Action: history,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "epoch",
						Usage:    "Consensus branch id of the epoch, e.g. 0xc2d6d0b4",
						Required: true,
					},
				},
			},
			{
				Name:   "feeestimates",
				Usage:  "Print the fee and priority estimates of a fee estimates file",
				Action: feeEstimates,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to the fee estimates file",
						Required: true,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withStore opens the configured store for the duration of fn.
func withStore(c *cli.Context, fn func(ctx context.Context, store coins.Store) error) error {
	ctx := c.Context
	tSettings := settings.NewSettings()

	storeURL := tSettings.Coins.StoreURL

	if raw := c.String("store"); raw != "" {
		var err error

		storeURL, err = url.Parse(raw)
		if err != nil {
			return errors.NewConfigurationError("invalid store url %q", raw, err)
		}
	}

	store, err := factory.NewStore(ctx, logger, tSettings, storeURL)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.Warnf("failed to close store: %v", err)
		}
	}()

	return fn(ctx, store)
}

func best(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store coins.Store) error {
		hash, err := store.GetBestBlock(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("best block: %s\n", hash)

		for _, pool := range model.AllShieldedTypes {
			root, err := store.GetBestAnchor(ctx, pool)
			if err != nil {
				return err
			}

			fmt.Printf("%-8s anchor: %s\n", pool, root)
		}

		return nil
	})
}

func coin(c *cli.Context) error {
	txid, err := chainhash.NewHashFromStr(c.String("txid"))
	if err != nil {
		return errors.NewInvalidArgumentError("invalid txid", err)
	}

	return withStore(c, func(ctx context.Context, store coins.Store) error {
		record, found, err := store.GetCoins(ctx, *txid)
		if err != nil {
			return err
		}

		if !found {
			return errors.NewCoinsNotFoundError("no unspent outputs for %s", txid)
		}

		fmt.Printf("height %d, version %d, coinbase %t\n", record.Height, record.Version, record.Coinbase)

		for i, out := range record.Outputs {
			if out.IsNull() {
				continue
			}

			fmt.Printf("  %4d: %d zatoshis, script %x\n", i, out.Value, out.Script)
		}

		return nil
	})
}

func history(c *cli.Context) error {
	id, err := strconv.ParseUint(c.String("epoch"), 0, 32)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid epoch %q", c.String("epoch"), err)
	}

	epoch := model.Epoch(id)

	return withStore(c, func(ctx context.Context, store coins.Store) error {
		length, err := store.GetHistoryLength(ctx, epoch)
		if err != nil {
			return err
		}

		root, err := store.GetHistoryRoot(ctx, epoch)
		if err != nil {
			return err
		}

		fmt.Printf("epoch %08x: %d nodes, root %s\n", uint32(epoch), length, root)

		return nil
	})
}

func feeEstimates(c *cli.Context) error {
	f, err := os.Open(c.String("file"))
	if err != nil {
		return errors.NewStorageError("cannot open %s", c.String("file"), err)
	}

	defer f.Close()

	fe, err := mempool.ReadFeeEstimator(f, rand.New(rand.NewPCG(0, 0)))
	if err != nil {
		return err
	}

	fmt.Printf("last known height %d\n", fe.LastKnownHeight())
	fmt.Printf("%6s %16s %16s\n", "blocks", "zatoshis/kB", "priority")

	for n := 1; n <= maxEstimateTarget; n++ {
		fmt.Printf("%6d %16d %16.0f\n", n, fe.EstimateFee(n).GetFeePerK(), fe.EstimatePriority(n))
	}

	return nil
}
