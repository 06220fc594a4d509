package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klemjul/promptforge/internal/app"
	"github.com/klemjul/promptforge/internal/config"
	"github.com/klemjul/promptforge/internal/conversation"
	"github.com/klemjul/promptforge/internal/errs"
	"github.com/klemjul/promptforge/internal/evaluator"
	"github.com/klemjul/promptforge/internal/llm"
	"github.com/klemjul/promptforge/internal/log"
	"github.com/klemjul/promptforge/internal/repl"
	"github.com/klemjul/promptforge/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	REPL_PROMPT  = "Enter your prompt: "
	HISTORY_FILE = "promptforge-history"
)

func RootCommand(app app.App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "promptforge [prompt...]",
		Short: "Refine prompts for large language models from the command line.",
		Args:  cobra.ArbitraryArgs,
		Example: `
promptforge "write a poem about go"   # Refine a single prompt
promptforge -t lab "extract DNA from a strawberry"   # Use the lab experiment template
promptforge   # Refine prompts one after another
promptforge -i   # Refine prompts in Chat Mode
	`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, app)
		},
		PreRunE:      validate,
		SilenceUsage: true,
	}

	rootCmd.Flags().SortFlags = false

	rootCmd.Flags().StringP("template", "t", "",
		fmt.Sprintf(
			`Instructional template wrapping the prompt, must contain one %s slot. (env: %s)
- If <value> is empty, the %q template is used.
- If <value> is %q or %q, or a name of the config file templates, that template is used.
- If <value> is a number, it will look for the environment variable %s_<number> instead.
- Otherwise <value> is used directly as the template.
`, "{user_prompt}", config.GetEnvWithPrefix(config.ENV_TEMPLATE), config.TemplateRefine,
			config.TemplateRefine, config.TemplateLab, config.GetEnvWithPrefix(config.ENV_TEMPLATE)))
	rootCmd.Flags().String("provider", string(llm.LLMProviderGemini),
		fmt.Sprintf("LLM provider to use. (env: %s)", config.GetEnvWithPrefix(config.ENV_PROVIDER)))
	rootCmd.Flags().String("model", "",
		fmt.Sprintf("LLM model to use, defaults depend on the provider. (env: %s)", config.GetEnvWithPrefix(config.ENV_MODEL)))
	rootCmd.Flags().BoolP("interactive", "i", false, "Run promptforge in Chat Mode.")
	rootCmd.Flags().Bool("no-stream", false,
		fmt.Sprintf("Wait for the whole answer and render it as markdown. (env: %s)", config.GetEnvWithPrefix(config.ENV_NO_STREAM)))
	rootCmd.Flags().Bool("history", false,
		fmt.Sprintf("Send the previous turns of the session with every prompt. (env: %s)", config.GetEnvWithPrefix(config.ENV_HISTORY)))
	rootCmd.Flags().Int("prompt-token-limit", config.DEFAULT_PROMPT_TOKEN_LIMIT,
		fmt.Sprintf("Maximum number of estimated tokens of a prompt, 0 disables the limit. (env: %s)", config.GetEnvWithPrefix(config.ENV_PROMPT_TOKEN_LIMIT)))
	rootCmd.Flags().Duration("typing-delay", config.DEFAULT_TYPING_DELAY,
		fmt.Sprintf("Pause after every streamed fragment in line mode, e.g. 50ms. (env: %s)", config.GetEnvWithPrefix(config.ENV_TYPING_DELAY)))
	rootCmd.Flags().String("api-key", "",
		fmt.Sprintf("API key of the provider, overrides the provider environment variable. (env: %s)", config.GetEnvWithPrefix(config.ENV_API_KEY)))
	rootCmd.Flags().String("endpoint", "",
		fmt.Sprintf("Base URL of the provider API. (env: %s)", config.GetEnvWithPrefix(config.ENV_ENDPOINT)))
	rootCmd.Flags().String("config", "", "Config file (yaml, toml or json) with settings and named templates.")
	rootCmd.Flags().String("env-file", config.DEFAULT_ENV_FILE, "Dotenv file loaded before reading the environment.")
	rootCmd.Flags().String("log-file", "",
		fmt.Sprintf("Write logs to this file. (env: %s)", config.GetEnvWithPrefix(config.ENV_LOG_FILE)))
	rootCmd.Flags().Bool("debug", false,
		fmt.Sprintf("Log at debug level. (env: %s)", config.GetEnvWithPrefix(config.ENV_DEBUG)))

	viper.BindPFlag(config.ENV_TEMPLATE, rootCmd.Flags().Lookup("template"))
	viper.BindPFlag(config.ENV_PROVIDER, rootCmd.Flags().Lookup("provider"))
	viper.BindPFlag(config.ENV_MODEL, rootCmd.Flags().Lookup("model"))
	viper.BindPFlag(config.ENV_NO_STREAM, rootCmd.Flags().Lookup("no-stream"))
	viper.BindPFlag(config.ENV_HISTORY, rootCmd.Flags().Lookup("history"))
	viper.BindPFlag(config.ENV_PROMPT_TOKEN_LIMIT, rootCmd.Flags().Lookup("prompt-token-limit"))
	viper.BindPFlag(config.ENV_TYPING_DELAY, rootCmd.Flags().Lookup("typing-delay"))
	viper.BindPFlag(config.ENV_API_KEY, rootCmd.Flags().Lookup("api-key"))
	viper.BindPFlag(config.ENV_ENDPOINT, rootCmd.Flags().Lookup("endpoint"))
	viper.BindPFlag(config.ENV_LOG_FILE, rootCmd.Flags().Lookup("log-file"))
	viper.BindPFlag(config.ENV_DEBUG, rootCmd.Flags().Lookup("debug"))

	viper.SetEnvPrefix(config.ENV_PREFIX)
	viper.AutomaticEnv()

	return rootCmd
}

func validate(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errs.Configuration(errors.Wrapf(err, "failed to read config file %s", configFile))
		}
	}

	provider := viper.GetString(config.ENV_PROVIDER)
	if !slices.Contains(llm.LLMProviders, llm.LLMProvider(provider)) {
		return errs.Configurationf("invalid provider '%s'. Valid providers are: %v", provider, llm.LLMProviders)
	}

	if limit := viper.GetInt(config.ENV_PROMPT_TOKEN_LIMIT); limit < 0 {
		return errs.Configurationf("prompt token limit must not be negative, got %d", limit)
	}

	return nil
}

func run(cmd *cobra.Command, args []string, app app.App) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	provider := llm.LLMProvider(viper.GetString(config.ENV_PROVIDER))
	model := viper.GetString(config.ENV_MODEL)

	logger, err := log.New(log.Options{
		File:  viper.GetString(config.ENV_LOG_FILE),
		Debug: viper.GetBool(config.ENV_DEBUG),
	})
	if err != nil {
		return errs.Configuration(errors.Wrap(err, "failed to create logger"))
	}
	defer logger.Sync()

	template, err := config.ResolveTemplate(
		viper.GetString(config.ENV_TEMPLATE),
		viper.GetString,
		viper.GetStringMapString(config.CONFIG_TEMPLATES),
	)
	if err != nil {
		return err
	}

	client, err := app.LLM().NewClient(ctx, provider, llm.LLMClientOptions{
		Model:    model,
		APIKey:   viper.GetString(config.ENV_API_KEY),
		Endpoint: viper.GetString(config.ENV_ENDPOINT),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create LLM client")
	}

	store := conversation.NewStore()
	ev, err := evaluator.New(evaluator.Options{
		Template:         template,
		Client:           client,
		Store:            store,
		Logger:           logger,
		Streaming:        !viper.GetBool(config.ENV_NO_STREAM),
		IncludeHistory:   viper.GetBool(config.ENV_HISTORY),
		PromptTokenLimit: viper.GetInt(config.ENV_PROMPT_TOKEN_LIMIT),
	})
	if err != nil {
		return err
	}

	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		interactive = false
	}
	userPrompt := strings.Join(args, " ")

	log.WithSession(logger, store.ID()).Info("session started",
		zap.String("provider", string(provider)),
		zap.String("model", model),
		zap.String("template", template.Name()),
		zap.Bool("interactive", interactive),
	)

	switch {
	case interactive:
		TUIModel := app.TUI().InitialModel(ui.InitialModelOptions{
			Context:       ctx,
			Title:         fmt.Sprintf("PromptForge - %s template", template.Name()),
			Evaluator:     ev,
			InitialPrompt: userPrompt,
		})
		if _, err := app.TUI().Run(TUIModel); err != nil {
			return errors.Wrap(err, "error running interactive mode")
		}

	case len(args) > 0:
		return runOnce(ctx, cmd, app, ev, userPrompt)

	default:
		reader, err := app.Console().NewLineReader(REPL_PROMPT, filepath.Join(os.TempDir(), HISTORY_FILE))
		if err != nil {
			return errors.Wrap(err, "error starting line mode")
		}
		defer reader.Close()

		return repl.Run(ctx, reader, ev, repl.Options{
			Out:         cmd.OutOrStdout(),
			TypingDelay: viper.GetDuration(config.ENV_TYPING_DELAY),
			Format:      app.Format().FormatMarkdown,
		})
	}
	return nil
}

func runOnce(ctx context.Context, cmd *cobra.Command, app app.App, ev *evaluator.Evaluator, userPrompt string) error {
	out := cmd.OutOrStdout()

	res, err := ev.Evaluate(ctx, userPrompt, func(fragment string) {
		out.Write([]byte(fragment))
	})
	if err != nil {
		return errors.Wrap(err, "failed to generate response")
	}

	if res.Streamed {
		out.Write([]byte("\n"))
		return nil
	}

	formattedRes, err := app.Format().FormatMarkdown(res.Text)
	if err != nil {
		return errors.Wrap(err, "failed to format response")
	}
	out.Write([]byte(formattedRes))
	return nil
}
