package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askTextbookTool defines the ask_textbook MCP tool.
var askTextbookTool = mcp.NewTool("ask_textbook",
	mcp.WithDescription("Answer a question using only the ingested textbooks. Returns the answer followed by the pages it was drawn from."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
)

// searchTextbookTool defines the search_textbook MCP tool.
var searchTextbookTool = mcp.NewTool("search_textbook",
	mcp.WithDescription("Search the ingested textbooks semantically. Returns the closest passages with their source and page."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)
