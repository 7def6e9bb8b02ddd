package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parithi/bankassist/internal/config"
	"github.com/parithi/bankassist/internal/storage"
)

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import accounts and transactions from CSV files",
	Long: `Import accounts and transactions from CSV files.

Examples:
  bankassist import --accounts ./accounts.csv --transactions ./transactions.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountsPath, _ := cmd.Flags().GetString("accounts")
		transactionsPath, _ := cmd.Flags().GetString("transactions")

		if accountsPath == "" && transactionsPath == "" {
			return fmt.Errorf("at least one of --accounts or --transactions is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		result, err := store.ImportCSV(accountsPath, transactionsPath)
		if err != nil {
			return err
		}

		printSuccess("Imported %d accounts and %d transactions", result.Accounts, result.Transactions)
		return nil
	},
}

func init() {
	importCmd.Flags().String("accounts", "", "path to the accounts CSV")
	importCmd.Flags().String("transactions", "", "path to the transactions CSV")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question through the running server",
	Long: `Ask the assistant a question through the running server.

Logs in first when --account and --password are given; otherwise the query
runs against the most recent login session.

Examples:
  bankassist ask --account ACC123 --password secret "What is my balance?"
  bankassist ask "Show my last transaction"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		account, _ := cmd.Flags().GetString("account")
		password, _ := cmd.Flags().GetString("password")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		if account != "" && password != "" {
			resp, err := client.post(ctx, "/login", map[string]string{
				"account_number": account,
				"password":       password,
			})
			if err != nil {
				return err
			}
			var login struct {
				Session struct {
					Name             string `json:"name"`
					TransactionCount int    `json:"transaction_count"`
				} `json:"session"`
			}
			if err := decodeJSON(resp, &login); err != nil {
				return err
			}
			printSuccess("Logged in as %s (%d transactions)", login.Session.Name, login.Session.TransactionCount)
		}

		resp, err := client.post(ctx, "/query", map[string]string{
			"query":          question,
			"account_number": account,
		})
		if err != nil {
			return err
		}

		var answer struct {
			Reply string `json:"reply"`
		}
		if err := decodeJSON(resp, &answer); err != nil {
			return err
		}

		fmt.Println(answer.Reply)
		return nil
	},
}

func init() {
	askCmd.Flags().String("account", "", "account number to log in with")
	askCmd.Flags().String("password", "", "account password")
}
