package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/askd/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the knowledge-base assistant a question",
	Long: `Ask the knowledge-base assistant a question.

Examples:
  askd ask "What does the Q3 invoice total to?"
  askd ask --thread thread_abc123 "And who approved it?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{"question": question}
		if threadID != "" {
			req["threadId"] = threadID
		}

		resp, err := client.post(cmd.Context(), "/ask", req)
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
			ThreadID string `json:"threadId"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		printStatus("Thread", "%s", result.ThreadID)
		return nil
	},
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file> [file...]",
	Short: "Ingest files into the knowledge base",
	Long: `Ingest one or more files into the knowledge base.

Examples:
  askd upload ./invoice.pdf
  askd upload --name "Q3 invoices" ./inv-1.pdf ./inv-2.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %d file(s)...", len(args))
		resp, err := client.upload(cmd.Context(), args, name)
		if err != nil {
			return err
		}

		var result struct {
			ID      string   `json:"id"`
			FileID  string   `json:"fileId"`
			FileIDs []string `json:"fileIds"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		count := len(result.FileIDs)
		if result.FileID != "" {
			count = 1
		}
		printSuccess("Ingested %d file(s) as document %s", count, result.ID)
		return nil
	},
}

// --- files ---

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List documents in the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/files")
		if err != nil {
			return err
		}

		var docs []struct {
			ID      string   `json:"id"`
			Name    string   `json:"name"`
			FileID  string   `json:"fileId"`
			FileIDs []string `json:"fileIds"`
		}
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("no documents")
			return nil
		}
		for _, d := range docs {
			count := len(d.FileIDs)
			if d.FileID != "" {
				count = 1
			}
			fmt.Printf("%s  %s (%d file(s))\n", d.ID, d.Name, count)
		}
		return nil
	},
}

// --- unanswered ---

var unansweredCmd = &cobra.Command{
	Use:   "unanswered",
	Short: "List questions the assistant could not answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewed, _ := cmd.Flags().GetString("mark-reviewed")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if reviewed != "" {
			resp, err := client.patch(cmd.Context(), "/unanswered/"+reviewed, map[string]bool{"update": true})
			if err != nil {
				return err
			}
			var result struct {
				ID string `json:"id"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Marked %s as reviewed", result.ID)
			return nil
		}

		resp, err := client.get(cmd.Context(), "/unanswered")
		if err != nil {
			return err
		}

		var questions []struct {
			ID       string `json:"id"`
			Question string `json:"question"`
			Updated  bool   `json:"updated"`
		}
		if err := decodeJSON(resp, &questions); err != nil {
			return err
		}

		if len(questions) == 0 {
			fmt.Println("no unanswered questions")
			return nil
		}
		for _, q := range questions {
			marker := " "
			if q.Updated {
				marker = "✓"
			}
			fmt.Printf("[%s] %s  %s\n", marker, q.ID, q.Question)
		}
		return nil
	},
}

var filesRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, name := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/files/"+id, map[string]string{"name": name})
		if err != nil {
			return err
		}

		var doc struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}
		printSuccess("Renamed %s to %q", doc.ID, doc.Name)
		return nil
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a document from the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/files/"+args[0])
		if err != nil {
			return err
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted document %s", result.ID)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Valid keys:
  ` + strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	askCmd.Flags().String("thread", "", "thread id to continue a previous conversation")
	uploadCmd.Flags().String("name", "", "display name for the document (defaults to the first filename)")
	unansweredCmd.Flags().String("mark-reviewed", "", "mark the given unanswered question id as reviewed")
	filesCmd.AddCommand(filesRenameCmd, filesDeleteCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
