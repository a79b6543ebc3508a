package mcp

import "github.com/mark3labs/mcp-go/mcp"

var captureToolDef = mcp.NewTool("jot_capture",
	mcp.WithDescription("Queue a free-form thought for classification and filing."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("The raw thought to capture. Prefixes like 'project:' force a category."),
	),
	mcp.WithString("source",
		mcp.Description("Where the thought came from. Defaults to 'mcp'."),
	),
)

var runToolDef = mcp.NewTool("jot_run",
	mcp.WithDescription("Drain the capture queue: classify, gate, and file every pending item."),
)

var digestToolDef = mcp.NewTool("jot_digest",
	mcp.WithDescription("Build a digest of recent records. Daily digests fall back to all open items when nothing is recent."),
	mcp.WithString("period",
		mcp.Description("Digest period: 'daily' or 'weekly'. Defaults to daily."),
	),
)

var listToolDef = mcp.NewTool("jot_list",
	mcp.WithDescription("List stored records, newest first."),
	mcp.WithString("category",
		mcp.Description("Restrict to one category: people, projects, ideas, or admin."),
	),
	mcp.WithNumber("days",
		mcp.Description("Only records filed in the last N days. 0 means no cutoff."),
	),
)

var updateToolDef = mcp.NewTool("jot_update",
	mcp.WithDescription("Merge fields into an existing record, addressed by id or by title."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Category of the record: people, projects, ideas, or admin."),
	),
	mcp.WithString("id",
		mcp.Description("Record id. Either id or title is required."),
	),
	mcp.WithString("title",
		mcp.Description("Record title. Ambiguous titles are rejected with the conflicting ids."),
	),
	mcp.WithObject("fields",
		mcp.Required(),
		mcp.Description("Field values to merge, keyed by field name."),
	),
)
