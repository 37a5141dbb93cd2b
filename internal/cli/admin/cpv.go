package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LogiStackDev/access-onboard-flow/internal/repository"
	"github.com/LogiStackDev/access-onboard-flow/internal/service"
	"github.com/spf13/cobra"
)

const datasetPrefix = "cpv/"

func CPVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cpv",
		Short: "Manage the CPV reference table",
		Long:  "Import CPV datasets and inspect the reference table",
	}

	cmd.AddCommand(CPVImportCmd())
	cmd.AddCommand(CPVUploadCmd())
	cmd.AddCommand(CPVDatasetsCmd())
	cmd.AddCommand(CPVCountCmd())

	return cmd
}

func CPVImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CPV dataset",
		Long: `Import a CSV dataset with a CODE,EN,FR,DE,NL header into the reference table.
Existing codes get their labels replaced. Read from a local file with --file
or from dataset storage with --s3-key.`,
		RunE: runCPVImport,
	}

	cmd.Flags().StringP("file", "f", "", "Local CSV file")
	cmd.Flags().String("s3-key", "", "Dataset key in storage (see 'cpv datasets')")
	cmd.Flags().Int("batch-size", 500, "Rows written per database batch")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.MarkFlagsMutuallyExclusive("file", "s3-key")
	cmd.MarkFlagsOneRequired("file", "s3-key")

	return cmd
}

func runCPVImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	file, _ := cmd.Flags().GetString("file")
	key, _ := cmd.Flags().GetString("s3-key")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool, err := getDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	importer := service.NewCPVImporter(repository.NewCPVRepository(pool), service.ImporterOptions{
		BatchSize: batchSize,
		Logger:    logger,
	})

	var result *service.ImportResult
	if key != "" {
		s3Client, err := newS3Client(ctx, cfg)
		if err != nil {
			return err
		}
		result, err = importer.ImportFromObject(ctx, s3Client, key)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", key, err)
		}
	} else {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()
		result, err = importer.Import(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", file, err)
		}
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(map[string]int{
			"rows":     result.Rows,
			"imported": result.Imported,
			"skipped":  result.Skipped,
		}, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}
	fmt.Printf("Imported %d of %d rows (%d skipped)\n", result.Imported, result.Rows, result.Skipped)
	return nil
}

func CPVUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CPV dataset to storage",
		Long:  "Store a CSV dataset under " + datasetPrefix + " so that it can be imported later with --s3-key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			return runCPVUpload(args[0], key)
		},
	}

	cmd.Flags().String("key", "", "Storage key (default: "+datasetPrefix+"<file name>)")

	return cmd
}

func runCPVUpload(path, key string) error {
	ctx := context.Background()
	if key == "" {
		key = datasetPrefix + filepath.Base(path)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	if err := s3Client.PutObject(ctx, key, f, "text/csv"); err != nil {
		return err
	}
	fmt.Printf("Uploaded %s to %s/%s\n", path, cfg.S3Bucket, key)
	return nil
}

func CPVDatasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List stored CPV datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runCPVDatasets(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runCPVDatasets(outputFormat string) error {
	ctx := context.Background()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}

	objects, err := s3Client.ListObjects(ctx, datasetPrefix)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(objects))
		for i, obj := range objects {
			data[i] = map[string]interface{}{
				"key":           obj.Key,
				"size":          obj.ContentLength,
				"last_modified": obj.LastModified,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(objects) == 0 {
		fmt.Println("No datasets found")
		return nil
	}
	fmt.Println("Datasets:")
	for _, obj := range objects {
		fmt.Printf("  %s (%d bytes, modified: %s)\n", obj.Key, obj.ContentLength, obj.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func CPVCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count CPV codes in the reference table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := getDBPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := repository.NewCPVRepository(pool).Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count cpv codes: %w", err)
			}
			fmt.Printf("%d CPV codes\n", n)
			return nil
		},
	}
}
