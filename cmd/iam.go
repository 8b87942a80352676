package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xuopoj/sd-helper/internal/auth"
	"github.com/xuopoj/sd-helper/internal/collect"
	"github.com/xuopoj/sd-helper/internal/config"
)

func newIAMCommand() *cobra.Command {
	iamCmd := &cobra.Command{
		Use:   "iam",
		Short: "Huawei Cloud IAM credentials and tokens",
	}
	iamCmd.AddCommand(
		newIAMConfigureCommand(),
		newIAMTokenCommand(),
		newIAMClearCacheCommand(),
		newIAMSetDefaultCommand(),
		newIAMListProfilesCommand(),
		newIAMShowConfigCommand(),
		newIAMDebugCommand(),
	)
	return iamCmd
}

func newIAMConfigureCommand() *cobra.Command {
	var (
		region string
		iamURL string
		local  bool
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Interactively store IAM credentials for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			existing, err := config.Load(profileFlag)
			if err != nil {
				return err
			}

			questions := []*survey.Question{
				{
					Name:     "username",
					Prompt:   &survey.Input{Message: "IAM username:", Default: existing.Username},
					Validate: survey.Required,
				},
				{
					Name:     "password",
					Prompt:   &survey.Password{Message: "IAM password:"},
					Validate: survey.Required,
				},
				{
					Name:     "domain",
					Prompt:   &survey.Input{Message: "Domain (account) name:", Default: existing.DomainName},
					Validate: survey.Required,
				},
				{
					Name:     "project",
					Prompt:   &survey.Input{Message: "Project name:", Default: existing.ProjectName},
					Validate: survey.Required,
				},
			}
			answers := struct {
				Username string
				Password string
				Domain   string
				Project  string
			}{}
			if err := survey.Ask(questions, &answers); err != nil {
				return err
			}

			profile := &config.Profile{
				Username:    answers.Username,
				Password:    answers.Password,
				DomainName:  answers.Domain,
				ProjectName: answers.Project,
				Region:      region,
				IAMURL:      iamURL,
				LLM:         existing.LLM,
			}
			if region == "" {
				profile.Region = existing.Region
			}
			if iamURL == "" {
				profile.IAMURL = existing.IAMURL
			}

			var path string
			if local {
				path, err = config.SaveLocal(profile)
			} else {
				path, err = config.SaveProfile(profileFlag, profile)
			}
			if err != nil {
				return err
			}
			color.Green("Configuration saved to %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "cloud region (e.g. cn-north-4)")
	cmd.Flags().StringVar(&iamURL, "iam-url", "", "custom IAM endpoint for private deployments")
	cmd.Flags().BoolVar(&local, "local", false, "write to .sd-helper.yaml in the working directory")
	return cmd
}

func newIAMTokenCommand() *cobra.Command {
	var (
		region  string
		iamURL  string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Fetch an IAM token (cached until near expiry)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(profileFlag)
			if err != nil {
				return err
			}
			creds, err := auth.FromProfile(p)
			if err != nil {
				return err
			}
			if region != "" {
				creds.Region = region
			}
			if iamURL != "" {
				creds.IAMURL = iamURL
			}

			info, err := auth.FetchToken(creds, profileFlag, !noCache)
			if err != nil {
				return err
			}

			source := ""
			if info.FromCache {
				source = " (from cache)"
			}
			color.Green("Token acquired%s", source)
			fmt.Printf("Token:      %s...\n", tokenPrefix(info.Token))
			if info.ProjectID != "" {
				fmt.Printf("Project ID: %s\n", info.ProjectID)
			}
			fmt.Printf("Expires:    %s\n", info.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "override the configured region")
	cmd.Flags().StringVar(&iamURL, "iam-url", "", "override the configured IAM endpoint")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "always request a fresh token")
	return cmd
}

func tokenPrefix(token string) string {
	if len(token) > 20 {
		return token[:20]
	}
	return token
}

func newIAMClearCacheCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove cached tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := profileFlag
			if profile == "" && !all {
				profile = config.DefaultProfile()
			}
			if all {
				profile = ""
			}
			cleared, err := auth.ClearCache(profile)
			if err != nil {
				return err
			}
			if cleared {
				color.Green("Token cache cleared")
			} else {
				fmt.Println("No cached tokens found")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "clear caches for every profile")
	return cmd
}

func newIAMSetDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <profile>",
		Short: "Set the default profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.SetDefaultProfile(args[0])
			if err != nil {
				return err
			}
			color.Green("Default profile set to %q (%s)", args[0], path)
			return nil
		},
	}
}

func newIAMListProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-profiles",
		Short: "List configured profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := config.ListProfiles()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("No profiles configured. Run 'sd-helper iam configure' first.")
				return nil
			}
			sort.Strings(names)
			def := config.DefaultProfile()
			for _, name := range names {
				if name == def {
					color.Green("* %s (default)", name)
				} else {
					fmt.Printf("  %s\n", name)
				}
			}
			return nil
		},
	}
}

func newIAMShowConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show-config",
		Short: "Print the effective profile with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(profileFlag)
			if err != nil {
				return err
			}

			masked := *p
			if masked.Password != "" {
				masked.Password = "****MASKED****"
			}
			if masked.SK != "" {
				masked.SK = "****MASKED****"
			}

			data, err := yaml.Marshal(&masked)
			if err != nil {
				return err
			}
			name := profileFlag
			if name == "" {
				name = config.DefaultProfile()
			}
			fmt.Printf("Profile: %s\n", name)
			if local := config.LocalPath(); local != "" {
				fmt.Printf("Local override: %s\n", local)
			}
			fmt.Println()
			fmt.Print(string(data))
			return nil
		},
	}
}

// newIAMDebugCommand runs the token exchange through a recording collector
// so a failing customer environment can be diagnosed offline.
func newIAMDebugCommand() *cobra.Command {
	var (
		name   string
		noMask bool
	)

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Capture a token exchange into a data collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.Load(profileFlag)
			if err != nil {
				return err
			}
			creds, err := auth.FromProfile(p)
			if err != nil {
				return err
			}

			collector := collect.NewCollector(!noMask)
			collector.AddNote("IAM debug session for endpoint " + creds.Endpoint())
			collector.Add("connectivity", collector.TestConnectivity([]string{creds.Endpoint()}))

			info, fetchErr := auth.FetchTokenWith(collector.Client, creds)
			if fetchErr != nil {
				collector.AddNote("Token fetch failed: " + fetchErr.Error())
				color.Red("Token fetch failed: %v", fetchErr)
			} else {
				collector.AddNote("Token fetch succeeded")
				collector.Add("token_info", map[string]any{
					"project_id": info.ProjectID,
					"expires_at": info.ExpiresAt.Format(time.RFC3339),
				})
				color.Green("Token fetch succeeded")
			}

			if name == "" {
				name = "iam_debug"
			}
			path, err := collector.Save(name, "", "yaml")
			if err != nil {
				return err
			}
			fmt.Printf("Collection saved: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "collection name (default iam_debug)")
	cmd.Flags().BoolVar(&noMask, "no-mask", false, "keep secrets unmasked in the capture")
	return cmd
}
