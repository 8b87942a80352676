package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xuopoj/sd-helper/internal/swr"
	"github.com/xuopoj/sd-helper/pkg/docker"
	"github.com/xuopoj/sd-helper/pkg/manifest"
	"github.com/xuopoj/sd-helper/pkg/progress"
)

func newSWRCommand() *cobra.Command {
	swrCmd := &cobra.Command{
		Use:   "swr",
		Short: "SWR image management commands",
	}
	swrCmd.AddCommand(newUploadImagesCommand())
	return swrCmd
}

func newUploadImagesCommand() *cobra.Command {
	var (
		configFile string
		dir        string
		dryRun     bool
		validate   bool
		resets     []string
		resetAll   bool
	)

	cmd := &cobra.Command{
		Use:   "upload-images",
		Short: "Load and push image tarballs to SWR",
		Long: `Reads the image section from the assets manifest, matches tarballs on
disk, then docker load + tag + push each image to SWR. Progress is saved
so interrupted uploads resume where they stopped.

Only one upload-images run may use a progress file at a time.

Examples:
  sd-helper swr upload-images --config config.yaml --dir /path/to/files
  sd-helper swr upload-images --config config.yaml --dir /path/to/files --dry-run
  sd-helper swr upload-images --config config.yaml --dir /path/to/files --validate
  sd-helper swr upload-images --reset-all
  sd-helper swr upload-images --reset "name:tag"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUploadImages(configFile, dir, dryRun, validate, resets, resetAll)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "config file with swr endpoint/org and assets_file path")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory containing asset tarballs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print commands without executing")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate manifest files exist on disk, then exit")
	cmd.Flags().StringArrayVarP(&resets, "reset", "r", nil, "reset progress for a specific key (repeat for multiple)")
	cmd.Flags().BoolVar(&resetAll, "reset-all", false, "reset all progress")

	return cmd
}

func runUploadImages(configFile, dir string, dryRun, validate bool, resets []string, resetAll bool) error {
	if resetAll || len(resets) > 0 {
		if err := resetProgress(configFile, resets, resetAll); err != nil {
			return err
		}
		if !validate {
			return nil
		}
	}

	cfg, err := swr.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if err := cfg.RequireManifest(); err != nil {
		return err
	}

	man, err := manifest.Parse(cfg.AssetsFile)
	if err != nil {
		return err
	}

	if validate {
		return runValidate(man, dir)
	}

	if err := cfg.RequireRegistry(); err != nil {
		return err
	}

	patterns := man.ImagePatterns()
	if len(patterns) == 0 {
		return fmt.Errorf("no image patterns found in manifest")
	}

	store, err := progress.Load(cfg.ProgressFile)
	if err != nil {
		return err
	}

	var engine docker.Engine = docker.NewCLIEngine("")
	if dryRun {
		engine = docker.DryRunEngine{}
	}

	fmt.Printf("Starting: %d images, dry_run=%v\n", len(patterns), dryRun)
	if dryRun {
		color.Yellow("DRY RUN MODE: no commands will be executed")
	}

	uploader := &swr.Uploader{
		Engine:   engine,
		Store:    store,
		Dir:      dir,
		Endpoint: cfg.Endpoint,
		Org:      cfg.Org,
		Cleanup:  cfg.CleanupAfterPush,
	}
	summary := uploader.Run(patterns)

	fmt.Println()
	fmt.Printf("Summary: %d done, %d failed, %d missing\n", summary.Done, summary.Failed, summary.Missing)
	return nil
}

// resetProgress clears all or selected progress entries before a run. The
// progress file location follows the config when it is readable.
func resetProgress(configFile string, resets []string, resetAll bool) error {
	progressPath := progress.DefaultFile
	if cfg, err := swr.LoadConfig(configFile); err == nil && cfg.ProgressFile != "" {
		progressPath = cfg.ProgressFile
	}

	store, err := progress.Load(progressPath)
	if err != nil {
		return err
	}
	if resetAll {
		fmt.Println("Resetting all progress")
		return store.Reset()
	}

	removed, err := store.ResetKeys(resets...)
	if err != nil {
		return err
	}
	for _, key := range removed {
		fmt.Printf("Reset: %s\n", key)
	}
	return nil
}

func runValidate(man *manifest.Manifest, dir string) error {
	found, missing := swr.Validate(man, dir)
	for _, f := range found {
		color.Green("  OK      [%s] %s -> %s", f.Section, f.Pattern, f.File)
	}
	for _, m := range missing {
		color.Red("  MISSING [%s] %s", m.Section, m.Pattern)
	}
	fmt.Printf("\nResult: %d found, %d missing\n", len(found), len(missing))
	if len(missing) > 0 {
		return fmt.Errorf("%d manifest entries missing on disk", len(missing))
	}
	return nil
}
