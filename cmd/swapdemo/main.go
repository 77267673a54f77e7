// main.go - Three-party partial-fulfillment swap, end to end.
//
// Runs the full flow against a persistent ledger:
//   - Alice spends her sell note and publishes an intent note with her ask
//   - Bob builds a plain swap offering part of the ask
//   - The solver consumes the intent, matches Bob's offer and returns the
//     remainder to Alice
//   - The combined transaction is verified and applied to the ledger
//
// Usage:
//   swapdemo [-config swapdemo.json]
//
// Groth16 keys are cached under the configured key directory, so only the
// first run pays for circuit setup.

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"shielded/internal/ledger"
	"shielded/internal/predicates"
	"shielded/internal/proving"
	"shielded/internal/shielded"
	"shielded/internal/swap"
)

func main() {
	configPath := flag.String("config", "swapdemo.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "swapdemo: %v\n", err)
		os.Exit(1)
	}
	log := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("swap failed")
	}
}

func newLogger(cfg *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = os.Stderr
	logger := zerolog.New(out).With().Timestamp().Logger().Level(level)
	if cfg.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger
}

func run(cfg *Config, log zerolog.Logger) error {
	rng := shielded.Rand()
	eng := proving.NewEngine(proving.WithKeyDir(cfg.KeyDir))

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer led.Close()
	log.Info().Str("path", cfg.LedgerPath).Int("commitments", led.Accumulator().Size()).Msg("ledger open")

	// Alice's side: sell note spent, intent note created.
	aliceAuth, err := predicates.NewTokenAuthorization(rng, eng)
	if err != nil {
		return err
	}
	aliceNk, err := shielded.RandomNullifierKey(rng)
	if err != nil {
		return err
	}
	sell := predicates.Token{Name: cfg.SellToken, Value: cfg.SellAmount}
	buy := predicates.Token{Name: cfg.BuyToken, Value: cfg.BuyAmount}
	start := time.Now()
	alicePtx, sw, err := swap.CreateTokenIntentPtx(eng, rng, sell, buy, aliceAuth, aliceNk)
	if err != nil {
		return fmt.Errorf("intent creation: %w", err)
	}
	log.Info().
		Str("sell", fmt.Sprintf("%d %s", sell.Value, sell.Name)).
		Str("buy", fmt.Sprintf("%d %s", buy.Value, buy.Name)).
		Dur("took", time.Since(start)).
		Msg("intent partial transaction built")

	// Bob's side: a plain swap offering part of the ask.
	bobAuth, err := predicates.NewTokenAuthorization(rng, eng)
	if err != nil {
		return err
	}
	bobNk, err := shielded.RandomNullifierKey(rng)
	if err != nil {
		return err
	}
	offer := predicates.Token{Name: cfg.BuyToken, Value: cfg.OfferAmount}
	bobWants := predicates.Token{
		Name:  cfg.SellToken,
		Value: cfg.OfferAmount * cfg.SellAmount / cfg.BuyAmount,
	}
	start = time.Now()
	bobPtx, err := swap.CreateTokenSwapPtx(eng, rng, offer, bobAuth, bobNk, bobWants, bobAuth, bobNk.ToCommitment())
	if err != nil {
		return fmt.Errorf("counterparty swap: %w", err)
	}
	log.Info().
		Str("offer", fmt.Sprintf("%d %s", offer.Value, offer.Name)).
		Str("wants", fmt.Sprintf("%d %s", bobWants.Value, bobWants.Name)).
		Dur("took", time.Since(start)).
		Msg("counterparty partial transaction built")

	// Solver's side: consume the intent against the offer.
	start = time.Now()
	solverPtx, err := swap.ConsumeTokenIntentPtx(eng, rng, sw, offer)
	if err != nil {
		return fmt.Errorf("intent consumption: %w", err)
	}
	log.Info().Dur("took", time.Since(start)).Msg("solver partial transaction built")

	tx := shielded.BuildTransaction(shielded.ShieldedPartialTxBundle{alicePtx, bobPtx, solverPtx}, nil)

	start = time.Now()
	if err := led.Apply(eng, tx); err != nil {
		return fmt.Errorf("transaction rejected: %w", err)
	}
	log.Info().Dur("took", time.Since(start)).Msg("transaction verified and applied")

	for i, action := range tx.Actions() {
		nf := action.Nullifier.Inner()
		cm := action.OutputCommitment.Inner()
		log.Debug().
			Int("action", i).
			Str("nullifier", nf.String()).
			Str("commitment", cm.String()).
			Msg("recorded")
	}
	root := led.Accumulator().CurrentRoot().Inner()
	log.Info().
		Int("commitments", led.Accumulator().Size()).
		Str("root", root.String()).
		Msg("ledger state")
	return nil
}
