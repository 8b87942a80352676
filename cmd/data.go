package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xuopoj/sd-helper/internal/collect"
)

func newDataCommand() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Offline data collection for customer-network diagnosis",
	}
	dataCmd.AddCommand(
		newDataListCommand(),
		newDataShowCommand(),
		newDataDeleteCommand(),
		newDataCollectCommand(),
		newDataTemplateCommand(),
		newDataRunCommand(),
	)
	return dataCmd
}

func newDataListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := collect.ListCollections("")
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No collections saved yet.")
				return nil
			}
			for _, info := range infos {
				fmt.Printf("%-40s %8d bytes  %s\n", info.Name, info.Size, info.Modified.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newDataShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := collect.LoadCollection(args[0], "")
			if err != nil {
				return err
			}
			encoded, err := yaml.Marshal(data)
			if err != nil {
				return err
			}
			fmt.Print(string(encoded))
			return nil
		},
	}
}

func newDataDeleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed := false
				prompt := &survey.Confirm{Message: fmt.Sprintf("Delete collection %q?", args[0])}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}
			deleted, err := collect.DeleteCollection(args[0], "")
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("collection not found: %s", args[0])
			}
			color.Green("Deleted %s", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDataCollectCommand() *cobra.Command {
	var (
		name     string
		notes    []string
		testURLs []string
		noMask   bool
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Record system info and connectivity probes into a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			collector := collect.NewCollector(!noMask)
			for _, note := range notes {
				collector.AddNote(note)
			}

			fmt.Println("Testing connectivity...")
			results := collector.TestConnectivity(testURLs)
			collector.Add("connectivity", results)

			urls := make([]string, 0, len(results))
			for url := range results {
				urls = append(urls, url)
			}
			sort.Strings(urls)
			for _, url := range urls {
				r := results[url]
				if r.Status == "ok" {
					color.Green("  ok    %s (HTTP %d)", url, r.StatusCode)
				} else {
					color.Red("  error %s: %s", url, r.Error)
				}
			}

			if name == "" {
				name = collect.GenerateName("diagnosis")
			}
			path, err := collector.Save(name, "", "yaml")
			if err != nil {
				return err
			}
			fmt.Printf("Collection saved: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "collection name (default diagnosis_<timestamp>)")
	cmd.Flags().StringArrayVar(&notes, "note", nil, "note to attach (repeatable)")
	cmd.Flags().StringArrayVar(&testURLs, "test-url", nil, "URL to probe (repeatable; defaults to IAM endpoints)")
	cmd.Flags().BoolVar(&noMask, "no-mask", false, "keep secrets unmasked in the capture")
	return cmd
}

func newDataTemplateCommand() *cobra.Command {
	var (
		output string
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "template [name]",
		Short: "Export a built-in request template for editing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list || len(args) == 0 {
				fmt.Println("Available templates:")
				for _, name := range collect.ListTemplates() {
					t, _ := collect.GetTemplate(name)
					fmt.Printf("  %-10s %s\n", name, t.Description)
				}
				return nil
			}

			name := args[0]
			t, ok := collect.GetTemplate(name)
			if !ok {
				return fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(collect.ListTemplates(), ", "))
			}
			if output == "" {
				output = name + "_template.yaml"
			}
			if err := collect.SaveTemplate(t, output); err != nil {
				return err
			}
			color.Green("Template written to %s", output)
			fmt.Println("Edit the file (credentials, base_url, variables), then run it with 'sd-helper data run'.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <name>_template.yaml)")
	cmd.Flags().BoolVar(&list, "list", false, "list available templates")
	return cmd
}

func newDataRunCommand() *cobra.Command {
	var (
		output      string
		stopOnError bool
		noMask      bool
	)

	cmd := &cobra.Command{
		Use:   "run <template.yaml>",
		Short: "Execute a request template and save the capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := collect.LoadTemplate(args[0])
			if err != nil {
				return err
			}

			runner := collect.NewRunner(t, !noMask)
			fmt.Printf("Running template %q: %d requests\n", t.Name, len(t.Requests))
			summary := runner.RunAll(stopOnError)

			for _, result := range summary.Results {
				if result.Success {
					color.Green("  ok    %-24s %s %s (HTTP %d)", result.Name, result.Method, result.URL, result.StatusCode)
				} else if result.Error != "" {
					color.Red("  error %-24s %s", result.Name, result.Error)
				} else {
					color.Red("  fail  %-24s %s %s (HTTP %d)", result.Name, result.Method, result.URL, result.StatusCode)
				}
			}
			fmt.Printf("\n%d requests: %d ok, %d failed\n", summary.Total, summary.Successful, summary.Failed)

			path, err := runner.Save(output, "")
			if err != nil {
				return err
			}
			fmt.Printf("Collection saved: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "collection name (default template name)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "stop at the first failed request")
	cmd.Flags().BoolVar(&noMask, "no-mask", false, "keep secrets unmasked in the capture")
	return cmd
}
