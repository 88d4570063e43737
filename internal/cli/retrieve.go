package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codepathfinder/repocontext/internal/retriever"
)

type retrieveFlags struct {
	repoID        string
	repoName      string
	title         string
	body          string
	topK          int
	minSimilarity float64
	json          bool
}

// retrieveOutput is the --json rendering of a retrieval
type retrieveOutput struct {
	Empty       bool             `json:"empty"`
	ContextText string           `json:"context_text"`
	Chunks      []retrievedChunk `json:"chunks"`
}

type retrievedChunk struct {
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

func newRetrieveCmd(a *app) *cobra.Command {
	var f retrieveFlags

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve documentation excerpts relevant to an issue",
		Long: `Embed an issue title and body and print the stored documentation
excerpts most similar to it, formatted as prompt context.

Examples:
  repocontext retrieve --repo-id 42 --title "Tests fail on Windows"
  repocontext retrieve --repo-id 42 --title "Crash" --body "$(cat issue.md)" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRetrieve(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.repoID, "repo-id", "", "repository identifier (required)")
	cmd.Flags().StringVar(&f.repoName, "repo-name", "", "repository display name for the context preamble")
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "issue title")
	cmd.Flags().StringVarP(&f.body, "body", "b", "", "issue body")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "number of chunks (default from config)")
	cmd.Flags().Float64Var(&f.minSimilarity, "min-similarity", 0, "similarity threshold (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("repo-id")

	return cmd
}

func (a *app) runRetrieve(cmd *cobra.Command, f retrieveFlags) error {
	p, err := buildPipeline(cmd.Context(), a.cfg, a.logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	result, err := p.retriever.Retrieve(cmd.Context(), retriever.Request{
		RepoID:        f.repoID,
		RepoFullName:  f.repoName,
		IssueTitle:    f.title,
		IssueBody:     f.body,
		Limit:         f.topK,
		MinSimilarity: f.minSimilarity,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	out := cmd.OutOrStdout()

	if f.json {
		output := retrieveOutput{
			Empty:       result.Empty,
			ContextText: result.ContextText,
			Chunks:      make([]retrievedChunk, 0, len(result.Chunks)),
		}
		for _, c := range result.Chunks {
			output.Chunks = append(output.Chunks, retrievedChunk{
				FilePath:   c.FilePath,
				ChunkIndex: c.ChunkIndex,
				Similarity: c.Similarity,
				Content:    c.Content,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	if result.Empty {
		fmt.Fprintln(out, "No relevant documentation found.")
		return nil
	}

	fmt.Fprintln(out, result.ContextText)
	return nil
}
