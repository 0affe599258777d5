package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	chorusotel "github.com/Strob0t/Chorus/internal/adapter/otel"
	"github.com/Strob0t/Chorus/internal/port/toolexec"
)

// toolBlockRe matches a fenced code block containing a JSON object. The
// object must carry "tool" and "parameters" keys to count as an invocation;
// anything else passes through untouched.
var toolBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ToolCallProcessor detects a structured tool invocation in model output,
// executes it, and splices the result into the response text. It is a
// best-effort post-process: malformed blocks and execution failures leave
// the model's natural-language answer intact.
type ToolCallProcessor struct {
	executor toolexec.Executor // nil disables tool execution entirely
}

// NewToolCallProcessor creates a ToolCallProcessor. executor may be nil when
// no tool execution service is configured.
func NewToolCallProcessor(executor toolexec.Executor) *ToolCallProcessor {
	return &ToolCallProcessor{executor: executor}
}

// Process scans responseText for a single fenced tool block. When a valid
// block is found and the tool executes successfully, the block is replaced
// with a human-readable rendering of the result; in every other case the
// original text is returned unchanged.
func (p *ToolCallProcessor) Process(ctx context.Context, responseText string) string {
	if p.executor == nil {
		return responseText
	}

	loc := toolBlockRe.FindStringSubmatchIndex(responseText)
	if loc == nil {
		return responseText
	}
	raw := responseText[loc[2]:loc[3]]

	var call struct {
		Tool       string         `json:"tool"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		// Not a tool block, just fenced JSON. Leave it alone.
		slog.Debug("fenced block is not a tool call", "error", err)
		return responseText
	}
	if call.Tool == "" || call.Parameters == nil {
		return responseText
	}

	toolCtx, span := chorusotel.StartToolCallSpan(ctx, call.Tool)
	result, err := p.executor.ExecuteTool(toolCtx, call.Tool, call.Parameters)
	span.End()
	if err != nil {
		slog.Error("tool execution failed",
			"tool", call.Tool,
			"error", err,
		)
		return responseText
	}

	rendering := renderToolResult(call.Tool, result)
	return responseText[:loc[0]] + rendering + responseText[loc[1]:]
}

// renderToolResult formats a tool result for inclusion in the final message.
func renderToolResult(tool, result string) string {
	result = strings.TrimSpace(result)
	if result == "" {
		return fmt.Sprintf("[%s completed with no output]", tool)
	}
	return fmt.Sprintf("Result of %s:\n%s", tool, result)
}
