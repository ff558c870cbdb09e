package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cowork-forge/forge/internal/forgeconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect forge's configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := forgeconfig.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("llm:\n  api_base_url: %s\n  model_name: %s\n", cfg.LLM.APIBaseURL, cfg.LLM.ModelName)
		fmt.Printf("embedding:\n  enabled: %v\n", cfg.Embedding.Enabled())
		fmt.Printf("coding_agent:\n  enabled: %v\n  agent_type: %s\n", cfg.CodingAgent.Enabled, cfg.CodingAgent.AgentType)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where forge would read config.toml from",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			fmt.Println(configPath)
			return nil
		}
		if _, err := os.Stat("config.toml"); err == nil {
			fmt.Println("config.toml")
			return nil
		}
		if dir, err := os.UserConfigDir(); err == nil {
			p := dir + "/forge/config.toml"
			if _, err := os.Stat(p); err == nil {
				fmt.Println(p)
				return nil
			}
		}
		fmt.Println("(no config file found; relying on environment variables)")
		return nil
	},
}
