package main

import (
	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addNetFlags registers the network configuration flags shared by every command.
func addNetFlags(cmd *cobra.Command) {
	def := jointnet.DefaultConf(0)
	f := cmd.Flags()
	f.Int("num-events", 0, "number of event types (0 infers it from the data)")
	f.Int("bptt", def.BPTT, "unroll depth")
	f.Int("batch", def.BatchSize, "batch size")
	f.Int("embed", def.Embed, "event embedding width")
	f.Int("hidden", def.Hidden, "recurrent hidden width")
	f.Int("hidden2", def.Hidden2, "width of the optional second hidden layer (0 disables it)")
	f.Int("time-dim", def.TimeDim, "width of the time features")
	f.Float64("wscale", def.WScale, "standard deviation of the initial weights")
	f.String("loss", def.Loss.String(), "time loss: mse or exp")
	f.Float64("lambda", def.Lambda, "weight of the squared error loss in mse mode")
}

// netConfig reads the network configuration back from viper, after the flags were bound.
func netConfig(numEvents int) (jointnet.Config, error) {
	if n := viper.GetInt("num-events"); n > 0 {
		numEvents = n
	}
	loss, err := jointnet.ParseLossType(viper.GetString("loss"))
	if err != nil {
		return jointnet.Config{}, err
	}
	conf := jointnet.Config{
		NumEventTypes: numEvents,
		BPTT:          viper.GetInt("bptt"),
		BatchSize:     viper.GetInt("batch"),
		Embed:         viper.GetInt("embed"),
		Hidden:        viper.GetInt("hidden"),
		Hidden2:       viper.GetInt("hidden2"),
		TimeDim:       viper.GetInt("time-dim"),
		WScale:        viper.GetFloat64("wscale"),
		Loss:          loss,
		Lambda:        viper.GetFloat64("lambda"),
	}
	return conf, conf.Validate()
}

func bindFlags(cmd *cobra.Command) error { return viper.BindPFlags(cmd.Flags()) }
