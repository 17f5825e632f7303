package main

import (
	"context"

	"github.com/gorgonia/jointrnn"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate saved weights on a test set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runEval()
		},
	}
	addNetFlags(cmd)
	addDataFlags(cmd)
	f := cmd.Flags()
	f.String("load", "", "weights written by train --save (required)")
	f.StringP("results", "o", "", "file receiving the predictions")
	cmd.MarkFlagRequired("load")
	return cmd
}

func runEval() error {
	train, test, err := loadSets()
	if err != nil {
		return err
	}
	ctx := context.Background()
	conf, closers, err := trainerConfig(ctx, train, test)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if err != nil {
		return err
	}
	// the trainer requires a positive iteration count even though nothing is trained
	conf.Iterations = 1

	t, err := jointrnn.New(conf, train, test)
	if err != nil {
		return err
	}
	defer t.Close()
	if err = t.Load(viper.GetString("load")); err != nil {
		return err
	}
	if _, err = t.Evaluate(ctx); err != nil {
		return err
	}
	return errors.WithStack(conf.Sink.Flush())
}
