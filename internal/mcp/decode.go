package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/snapstrip/internal/errors"
)

// decode unmarshals MCP request arguments into a typed request struct.
// Malformed arguments become an INVALID_REQUEST tool error rather than a
// transport failure, so clients see them in the tool result.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("marshal arguments: %v", err))
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, errors.NewInvalidRequest(fmt.Sprintf("unmarshal arguments: %v", err))
	}
	return result, nil
}
