package main

import (
	"fmt"

	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the unrolled network as a Graphviz DOT graph",
		Example: `  jointrnn graph --num-events 5 --bptt 3 | dot -Tsvg > net.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd); err != nil {
				return err
			}
			conf, err := netConfig(0)
			if err != nil {
				return err
			}
			a, err := jointnet.NewAssembler(conf)
			if err != nil {
				return err
			}
			var net *jointnet.Net
			if viper.GetBool("test") {
				net, err = a.BuildTest()
			} else {
				net, err = a.BuildTraining(conf.BPTT)
			}
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"nodes": net.Graph.Len(), "edges": len(net.Graph.Edges())}).Debug("built")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), net.Graph.ToDot())
			return err
		},
	}
	addNetFlags(cmd)
	cmd.Flags().Bool("test", false, "print the single step test graph instead")
	return cmd
}
