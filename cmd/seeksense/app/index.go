package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kart-io/logger"
	"github.com/spf13/cobra"

	"github.com/kart-io/seeksense/cmd/seeksense/app/options"
	"github.com/kart-io/seeksense/internal/model"
	"github.com/kart-io/seeksense/pkg/utils/json"
)

// newIndexCommand 返回 index 子命令：从 JSON 文件读取文档并写入索引，不启动 HTTP 服务。
func newIndexCommand(opts *options.ServerOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index documents from a JSON file",
		Long: `Index documents from a JSON file and print the indexing report.

The file holds a JSON array of documents, or an object with a "documents" array.
Use "-" to read from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := readDocuments(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), opts, docs, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the documents to index, - for stdin.")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runIndex(ctx context.Context, opts *options.ServerOptions, docs []*model.Document, out io.Writer) error {
	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.InitLogger(); err != nil {
		return err
	}

	components, err := cfg.NewComponents(ctx)
	if err != nil {
		return err
	}
	defer components.Close(context.Background())

	report, err := components.Service.Index(ctx, docs)
	if report != nil {
		enc := json.NewEncoder(out)
		if encErr := enc.Encode(report); encErr != nil {
			logger.Warnw("failed to print index report", "error", encErr.Error())
		}
	}
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("index finished with %d failed or skipped batches", report.SkippedBatches+report.FailedBatches)
	}
	return nil
}

// readDocuments 读取文档数组，兼容 {"documents": [...]} 形式。
func readDocuments(file string, stdin io.Reader) ([]*model.Document, error) {
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	var docs []*model.Document
	if err := json.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}
	var wrapped struct {
		Documents []*model.Document `json:"documents"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}
	return wrapped.Documents, nil
}
