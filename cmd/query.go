package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/news"
)

var (
	flagUser    string
	flagModel   string
	flagPrompts string
)

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Run one news query and print the result as JSON",
	Long: `Resolve free-text input to a registered HR topic, fetch and summarize
today's articles, and print the structured result.

Example:
  hrnews query "tell me about compensation, benefits and rewards" --user alice`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		svc, closer, err := buildService(cfg)
		if err != nil {
			return err
		}
		defer closer()

		resp := svc.Handle(cmd.Context(), news.Request{
			Input:      strings.Join(args, " "),
			UserID:     flagUser,
			PromptFile: flagPrompts,
			Model:      flagModel,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if resp.Status != news.StatusSuccess {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&flagUser, "user", "", "user id for conversation history (omit for anonymous)")
	queryCmd.Flags().StringVar(&flagModel, "model", "", "model identifier override")
	queryCmd.Flags().StringVar(&flagPrompts, "prompts", "", "path to the prompt template file")
}
