package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/gorgonia/jointrnn"
	"github.com/gorgonia/jointrnn/dataset"
	"github.com/gorgonia/jointrnn/encoding/gif"
	"github.com/gorgonia/jointrnn/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a network and evaluate it periodically",
		Example: `  # Train with the exponential time loss, writing predictions of every evaluation
  jointrnn train --train-events train.ev --train-times train.dt \
    --test-events test.ev --test-times test.dt --loss exp --results pred.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			return runTrain()
		},
	}
	addNetFlags(cmd)
	addDataFlags(cmd)
	f := cmd.Flags()
	f.Int("iters", 1000, "number of training batches")
	f.Int("test-interval", 100, "evaluate every n iterations (0 evaluates at the end only)")
	f.Float64("lr", 0.01, "learn rate")
	f.String("name", "jointrnn", "run name")
	f.StringP("results", "o", "", "file receiving the predictions of every evaluation")
	f.String("stats", "", "CSV file receiving every report")
	f.String("gif", "", "GIF file receiving one frame per report")
	f.String("save", "", "file receiving the trained weights")
	f.String("load", "", "weights to start from")
	f.String("metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func addDataFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("train-events", "", "training event types, one sequence per line")
	f.String("train-times", "", "training inter-arrival times, parallel to --train-events")
	f.String("test-events", "", "test event types, one sequence per line")
	f.String("test-times", "", "test inter-arrival times, parallel to --test-events")
}

func loadSets() (train, test *dataset.Dataset, err error) {
	if train, err = dataset.LoadFiles(viper.GetString("train-events"), viper.GetString("train-times")); err != nil {
		return nil, nil, err
	}
	if test, err = dataset.LoadFiles(viper.GetString("test-events"), viper.GetString("test-times")); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func trainerConfig(ctx context.Context, train, test *dataset.Dataset) (jointrnn.Config, []func() error, error) {
	n := train.NumEventTypes
	if test.NumEventTypes > n {
		n = test.NumEventTypes
	}
	nn, err := netConfig(n)
	if err != nil {
		return jointrnn.Config{}, nil, err
	}
	conf := jointrnn.Config{
		Name:         viper.GetString("name"),
		NNConf:       nn,
		Iterations:   viper.GetInt("iters"),
		TestInterval: viper.GetInt("test-interval"),
		LearnRate:    viper.GetFloat64("lr"),
		Logger:       log,
	}
	if conf.Name == "" {
		conf.Name = "jointrnn"
	}
	if conf.LearnRate == 0 {
		conf.LearnRate = 0.01
	}

	var closers []func() error
	sinks := metrics.Sinks{metrics.NewTextSink(os.Stdout)}
	if p := viper.GetString("results"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return conf, closers, errors.WithStack(err)
		}
		closers = append(closers, f.Close)
		conf.Results = f
	}
	if p := viper.GetString("gif"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return conf, closers, errors.WithStack(err)
		}
		closers = append(closers, f.Close)
		sinks = append(sinks, gif.NewGifEncoder(f, conf.Name, 600, 800))
	}
	if addr := viper.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		ps, err := metrics.NewPromSink(reg, "jointrnn")
		if err != nil {
			return conf, closers, err
		}
		sinks = append(sinks, ps)
		srv, err := serveMetrics(ctx, addr, reg)
		if err != nil {
			return conf, closers, err
		}
		closers = append(closers, srv.Close)
	}
	conf.Sink = sinks
	return conf, closers, nil
}

func runTrain() error {
	train, test, err := loadSets()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conf, closers, err := trainerConfig(ctx, train, test)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if err != nil {
		return err
	}

	t, err := jointrnn.New(conf, train, test)
	if err != nil {
		return err
	}
	defer t.Close()
	if p := viper.GetString("load"); p != "" {
		if err = t.Load(p); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"run":        t.RunID(),
		"train_seqs": len(train.Seqs),
		"test_seqs":  len(test.Seqs),
		"events":     conf.NNConf.NumEventTypes,
	}).Info("training")

	if err = t.Learn(ctx); err != nil {
		return err
	}

	if p := viper.GetString("stats"); p != "" {
		if err = t.Dump(p); err != nil {
			return err
		}
	}
	if p := viper.GetString("save"); p != "" {
		if err = t.Save(p); err != nil {
			return err
		}
		log.WithField("file", p).Info("saved weights")
	}
	return nil
}
