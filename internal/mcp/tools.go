package mcp

import "github.com/mark3labs/mcp-go/mcp"

var rankingsToolDef = mcp.NewTool("strip_rankings",
	mcp.WithDescription("List the ranked frames for a day, best first. Defaults to today."),
	mcp.WithString("day", mcp.Description("Day in YYYY-MM-DD form; omit for today.")),
	mcp.WithBoolean("by_time", mcp.Description("Order by capture time instead of score.")),
)

var daysToolDef = mcp.NewTool("strip_days",
	mcp.WithDescription("List every day that has ranked frames, newest first."),
)

var getToolDef = mcp.NewTool("strip_get",
	mcp.WithDescription("Fetch one ranked frame by its ID."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID.")),
)

var statusToolDef = mcp.NewTool("strip_status",
	mcp.WithDescription("Report today's pipeline state: ranked count, strip, push state."),
	mcp.WithString("day", mcp.Description("Day in YYYY-MM-DD form; omit for today.")),
)

var captureToolDef = mcp.NewTool("strip_capture",
	mcp.WithDescription("Run one capture tick now: capture, person check, score, rank."),
)

var publishToolDef = mcp.NewTool("strip_publish",
	mcp.WithDescription("Run the publish pipeline now: stylize, collage, push. Defaults to today."),
	mcp.WithString("day", mcp.Description("Day in YYYY-MM-DD form; omit for today.")),
)

var clearToolDef = mcp.NewTool("strip_clear",
	mcp.WithDescription("Remove all ranked frames and their files for a day."),
	mcp.WithString("day", mcp.Required(), mcp.Description("Day in YYYY-MM-DD form.")),
)
