package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/parithi/bankassist/internal/pipeline"
	"github.com/parithi/bankassist/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Resolver Resolver
	Sessions *session.Store
}

// NewMCPServer creates an MCP server exposing the assistant over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bankassist",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bankassist answers banking questions about the logged-in customer's account and transactions."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("bank_login",
			mcp.WithDescription("Authenticate a customer and load their account snapshot into the active session."),
			mcp.WithString("account_number", mcp.Description("Bank account number"), mcp.Required()),
			mcp.WithString("password", mcp.Description("Account password"), mcp.Required()),
		),
		mcpBankLogin(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_assistant",
			mcp.WithDescription("Ask the banking assistant a free-form question about the logged-in account."),
			mcp.WithString("query", mcp.Description("Question text"), mcp.Required()),
			mcp.WithString("account_number", mcp.Description("Account to answer for (defaults to the most recent login)")),
		),
		mcpAskAssistant(deps),
	)

	s.AddTool(
		mcp.NewTool("last_transaction",
			mcp.WithDescription("Return the most recent transaction from the active session snapshot."),
			mcp.WithString("account_number", mcp.Description("Account to inspect (defaults to the most recent login)")),
		),
		mcpLastTransaction(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"bank://session",
			"Active Session",
			mcp.WithResourceDescription("Summary of the most recent login session as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSession(deps),
	)

	return s
}

func mcpBankLogin(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		account, err := req.RequireString("account_number")
		if err != nil {
			return mcpError("account_number is required"), nil
		}
		password, err := req.RequireString("password")
		if err != nil {
			return mcpError("password is required"), nil
		}

		summary, err := deps.Resolver.Login(account, password)
		if err != nil {
			if errors.Is(err, pipeline.ErrInvalidCredentials) {
				return mcpError("invalid account number or password"), nil
			}
			return mcpError(fmt.Sprintf("login failed: %v", err)), nil
		}

		b, err := json.Marshal(summary)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal session: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskAssistant(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		account := req.GetString("account_number", "")

		answer, err := deps.Resolver.ResolveText(ctx, account, query)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoActiveSession) {
				return mcpError("no active session: call bank_login first"), nil
			}
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcpText(answer.Reply), nil
	}
}

func mcpLastTransaction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		account := req.GetString("account_number", "")

		sess, err := lookupSession(deps.Sessions, account)
		if err != nil {
			return mcpError("no active session: call bank_login first"), nil
		}

		if len(sess.Transactions) == 0 {
			return mcpText("no transactions on record"), nil
		}

		latest := sess.Transactions[0]
		for _, tx := range sess.Transactions[1:] {
			if tx.OccurredAt.After(latest.OccurredAt) {
				latest = tx
			}
		}

		b, err := json.Marshal(latest)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal transaction: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSession(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sess, err := deps.Sessions.MostRecent()
		if err != nil {
			return nil, fmt.Errorf("no active session: %w", err)
		}

		summary := pipeline.SessionSummary{
			AccountNumber:    sess.Account.AccountNumber,
			Name:             sess.Account.Name,
			TransactionCount: len(sess.Transactions),
			LoginAt:          sess.LoginAt,
		}

		b, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func lookupSession(store *session.Store, account string) (session.Session, error) {
	if account == "" {
		return store.MostRecent()
	}
	return store.Get(account)
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
