package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xuopoj/sd-helper/internal/auth"
	"github.com/xuopoj/sd-helper/internal/config"
	"github.com/xuopoj/sd-helper/internal/llm"
	"github.com/xuopoj/sd-helper/internal/tui"
)

func newLLMCommand() *cobra.Command {
	llmCmd := &cobra.Command{
		Use:   "llm",
		Short: "Chat with ModelArts/Pangu inference endpoints",
	}
	llmCmd.AddCommand(
		newLLMListCommand(),
		newLLMAddCommand(),
		newLLMChatCommand(),
	)
	return llmCmd
}

func newLLMListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured models",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(profileFlag)
			if err != nil {
				return err
			}
			names := llm.ListModels(p.LLM)
			if len(names) == 0 {
				fmt.Println("No models configured. Run 'sd-helper llm add <name> --endpoint <url>' first.")
				return nil
			}
			def := ""
			if p.LLM != nil {
				def = p.LLM.DefaultModel
			}
			for _, name := range names {
				model, _ := llm.ResolveModel(p.LLM, name)
				marker := "  "
				if name == def {
					marker = "* "
				}
				fmt.Printf("%s%s  type=%s temp=%.1f max_tokens=%d\n    %s\n",
					marker, name, model.Type, model.Temperature, model.MaxTokens, model.Endpoint)
			}
			return nil
		},
	}
}

func newLLMAddCommand() *cobra.Command {
	var (
		endpoint    string
		modelType   string
		temperature float64
		maxTokens   int
		system      string
		makeDefault bool
		local       bool
		noVerify    bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a model in the profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if endpoint == "" {
				return fmt.Errorf("--endpoint is required")
			}

			p, err := config.Load(profileFlag)
			if err != nil {
				return err
			}
			if p.LLM == nil {
				p.LLM = &config.LLMSettings{}
			}
			if p.LLM.Models == nil {
				p.LLM.Models = map[string]config.ModelConfig{}
			}

			mc := config.ModelConfig{
				Endpoint:    endpoint,
				Type:        modelType,
				Temperature: temperature,
				MaxTokens:   maxTokens,
				System:      system,
			}
			if noVerify {
				verify := false
				mc.VerifySSL = &verify
			}
			p.LLM.Models[name] = mc
			if makeDefault || p.LLM.DefaultModel == "" {
				p.LLM.DefaultModel = name
			}

			var path string
			if local {
				path, err = config.SaveLocal(p)
			} else {
				path, err = config.SaveProfile(profileFlag, p)
			}
			if err != nil {
				return err
			}
			color.Green("Model %q saved to %s", name, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "inference endpoint URL (required)")
	cmd.Flags().StringVar(&modelType, "type", "", "model type: modelarts or pangu (default modelarts)")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "max completion tokens")
	cmd.Flags().StringVarP(&system, "system", "s", "", "default system prompt")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make this the default model")
	cmd.Flags().BoolVar(&local, "local", false, "write to .sd-helper.yaml in the working directory")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip TLS certificate verification for this model")
	return cmd
}

func newLLMChatCommand() *cobra.Command {
	var (
		modelName   string
		endpoint    string
		temperature float64
		maxTokens   int
		system      string
		files       []string
		images      []string
		noStream    bool
		noVerify    bool
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with a model (interactive TUI without a message)",
		Long: `Without a message argument an interactive chat session opens. With one,
the reply is streamed to stdout and the command exits.

Files given with -f are prepended to the conversation as context; images
given with -i are attached as vision content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(profileFlag)
			if err != nil {
				return err
			}

			model, ok := llm.ResolveModel(p.LLM, modelName)
			if !ok {
				model = llm.Model{
					Name:        "ad-hoc",
					Type:        llm.ModelTypeModelArts,
					Temperature: 0.7,
					MaxTokens:   2048,
					VerifySSL:   true,
				}
			}
			if endpoint == "" {
				endpoint = os.Getenv("SD_LLM_ENDPOINT")
			}
			if endpoint != "" {
				model.Endpoint = endpoint
			}
			if model.Endpoint == "" {
				return fmt.Errorf("no endpoint: configure a model with 'sd-helper llm add' or pass --endpoint")
			}
			if cmd.Flags().Changed("temperature") {
				model.Temperature = temperature
			}
			if maxTokens > 0 {
				model.MaxTokens = maxTokens
			}
			if system != "" {
				model.System = system
			}
			if noVerify {
				model.VerifySSL = false
			}

			info, err := auth.TokenFromConfig(profileFlag, true)
			if err != nil {
				return err
			}
			client := llm.NewClient(model.Endpoint, info.Token, model.Type, !model.VerifySSL)

			messages, err := seedMessages(model.System, files)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if len(images) > 0 {
					return fmt.Errorf("images require a one-shot message argument")
				}
				return tui.Run(tui.Options{
					Client:      client,
					Messages:    messages,
					ModelName:   model.Name,
					Temperature: model.Temperature,
					MaxTokens:   model.MaxTokens,
				})
			}

			userMsg := llm.Message{Role: "user", Content: args[0]}
			if len(images) > 0 {
				userMsg, err = llm.BuildVisionMessage(args[0], images)
				if err != nil {
					return err
				}
			}
			messages = append(messages, userMsg)
			opts := llm.Options{Temperature: model.Temperature, MaxTokens: model.MaxTokens}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if jsonOut || noStream {
				text, raw, err := client.Chat(ctx, messages, opts)
				if err != nil {
					return err
				}
				if jsonOut {
					encoded, err := json.MarshalIndent(raw, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(encoded))
					return nil
				}
				fmt.Println(text)
				return nil
			}

			err = client.Stream(ctx, messages, opts, func(chunk string) error {
				fmt.Print(chunk)
				return nil
			})
			fmt.Println()
			if ctx.Err() != nil {
				fmt.Fprintln(os.Stderr, "[interrupted]")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "model name from the profile")
	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "endpoint URL (or SD_LLM_ENDPOINT)")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "max completion tokens")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system prompt")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "text file to include as context (repeatable)")
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "image to attach (path, URL, or data URL; repeatable)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the full reply instead of streaming")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip TLS certificate verification")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw JSON response")
	return cmd
}

// seedMessages builds the system prompt plus any file context turns that
// precede the user's first message.
func seedMessages(system string, files []string) ([]llm.Message, error) {
	var messages []llm.Message
	if system != "" {
		messages = append(messages, llm.Message{Role: "system", Content: system})
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read context file %s: %w", path, err)
		}
		content := fmt.Sprintf("Context from %s:\n\n%s", path, strings.TrimSpace(string(data)))
		messages = append(messages, llm.Message{Role: "user", Content: content})
	}
	return messages, nil
}
