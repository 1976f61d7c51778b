/*
Copyright 2025 The replend Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replenlab/replend/internal/config"
)

// rootFlags are the persistent flags shared by all subcommands.
type rootFlags struct {
	cmd        *cobra.Command
	configFile string
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replend",
		Short: "Conversational inventory replenishment planner",
		Long: `replend builds and solves replenishment optimization models from
conversational requests: retrieve inventory data, optimize order quantities
under business rules, explore what-if scenarios, and chart the results.`,
		SilenceUsage: true,
	}
	flags := &rootFlags{cmd: cmd}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default: ./replend.yaml)")
	pf.String("data", "", "inventory CSV snapshot (overrides config)")
	pf.String("rules", "", "business rules YAML (overrides config)")
	pf.IntP("verbosity", "v", 0, "log verbosity (overrides config)")
	pf.Bool("dev", false, "human-readable console logging")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newChatCmd(flags))
	return cmd
}

// loadConfig reads the config file with changed flags bound on top, so
// flags override both the file and the environment.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	v := config.NewViper(flags.configFile)
	if err := config.BindFlags(v, flags.cmd.PersistentFlags()); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil && (flags.configFile != "" || !config.IsNotFound(err)) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.FromViper(v)
}
