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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive planning session on stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Println("replend ready. Type a request, or 'quit' to exit.")
			scanner := bufio.NewScanner(os.Stdin)
			var sessionID string
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "quit" || text == "exit" {
					return nil
				}

				resp, err := a.orch.HandleTurn(cmd.Context(), sessionID, text)
				if err != nil {
					return err
				}
				sessionID = resp.SessionID
				fmt.Println(resp.Message)
				if resp.Solution != nil {
					for _, d := range resp.Solution.Decisions {
						if d.OrderQty > 0 || d.Shortfall > 0 {
							fmt.Printf("  %-12s order %8.1f  shortfall %6.1f\n", d.SKU, d.OrderQty, d.Shortfall)
						}
					}
				}
			}
		},
	}
}
