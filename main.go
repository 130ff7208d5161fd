package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ai_news_writer/config"
	"ai_news_writer/generator"
	"ai_news_writer/logging"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "newswriter",
	Short: "AI 新闻稿写作：生成服务与命令行客户端",
	Long: `newswriter assembles a news prompt from event details, submits it to the
generation service, follows the job and renders the draft with its photo
placeholders resolved.

Run "newswriter serve" for the generation service and "newswriter write" for
the client.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.Debug || verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.AddCommand(serveCmd, writeCmd, promptCmd, importPhotosCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildLLM(ctx context.Context, c config.Config) (generator.LLMClient, error) {
	if c.LLM == nil || c.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key_env in config or LLM_PROVIDER")
	}
	return generator.NewLLM(ctx, c.LLM.Settings())
}
