// Command tabula trains a self-play agent for one of the built-in games and
// writes the trained weights to a checkpoint file.
package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mkr-ml/tabula"
	"github.com/mkr-ml/tabula/game"
	"github.com/mkr-ml/tabula/game/connecttwo"
	"github.com/mkr-ml/tabula/game/mnk"
	"github.com/mkr-ml/tabula/mcts"
	"github.com/mkr-ml/tabula/pvnet"
)

var flags struct {
	game         string
	iterations   int
	batchSize    int
	dataSize     int
	hidden       int
	simulations  int
	learnRate    float64
	momentum     float64
	weightDecay  float64
	policyWeight float64
	temperature  float64
	seed         uint64
	ckpt         string
	stats        string
	debug        bool
}

func main() {
	cmd := &cobra.Command{
		Use:           "tabula",
		Short:         "train a board-game agent by self-play",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&flags.game, "game", "connect2", "game to train on: connect2 or tictactoe")
	cmd.Flags().IntVar(&flags.iterations, "iters", 50, "outer training iterations")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 32, "games per lockstep batch and examples per training batch")
	cmd.Flags().IntVar(&flags.dataSize, "data-size", 1024, "games collected per iteration")
	cmd.Flags().IntVar(&flags.hidden, "hidden", 64, "hidden width of the network")
	cmd.Flags().IntVar(&flags.simulations, "simulations", 16, "tree search budget per move")
	cmd.Flags().Float64Var(&flags.learnRate, "lr", 0.001, "learning rate")
	cmd.Flags().Float64Var(&flags.momentum, "momentum", 0.9, "momentum of the gradient trace")
	cmd.Flags().Float64Var(&flags.weightDecay, "weight-decay", 1e-4, "L2 weight decay added to the gradient")
	cmd.Flags().Float64Var(&flags.policyWeight, "policy-weight", 1.0, "weight of the policy loss relative to the value loss")
	cmd.Flags().Float64Var(&flags.temperature, "temperature", 1.0, "move sampling temperature (0 plays the most visited move)")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 42, "master seed; a run is reproducible from it")
	cmd.Flags().StringVar(&flags.ckpt, "ckpt", "agent.ckpt", "checkpoint file written at the end of the run")
	cmd.Flags().StringVar(&flags.stats, "stats", "", "optional CSV file for the per-iteration loss history")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "verbose logging")

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("training failed")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if flags.debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	g, err := pickGame(flags.game)
	if err != nil {
		return err
	}

	netConf := pvnet.DefaultConf(g.ObservationLen(), g.ActionSpace())
	netConf.Hidden = flags.hidden
	netConf.BatchSize = flags.batchSize
	netConf.PolicyWeight = flags.policyWeight

	conf := tabula.Config{
		Name:    g.Name(),
		NetConf: netConf,
		SearchConf: mcts.Config{
			Simulations: flags.simulations,
			PUCT:        1.0,
			Temperature: flags.temperature,
		},
		BatchSize:   flags.batchSize,
		DataSize:    flags.dataSize,
		Iterations:  flags.iterations,
		LearnRate:   flags.learnRate,
		Momentum:    flags.momentum,
		WeightDecay: flags.weightDecay,
		Seed:        flags.seed,
	}

	a := tabula.New(g, conf)
	start := time.Now()
	if err := a.Learn(); err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("training complete")

	if flags.stats != "" {
		if err := a.Dump(flags.stats); err != nil {
			return err
		}
	}
	if err := a.Save(flags.ckpt); err != nil {
		return err
	}
	log.Info().Str("file", flags.ckpt).Msg("checkpoint written")
	return nil
}

func pickGame(name string) (game.Game, error) {
	switch name {
	case "connect2":
		return connecttwo.New(), nil
	case "tictactoe":
		return mnk.TicTacToe(), nil
	default:
		return nil, errors.Errorf("unknown game %q (want connect2 or tictactoe)", name)
	}
}
