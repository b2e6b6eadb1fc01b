package mcp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool arguments arrive as loosely typed JSON. These helpers normalize the
// shapes MCP clients actually send: numbers as float64, numbers as strings,
// lists as arrays or as JSON-encoded strings.

func argString(request mcp.CallToolRequest, name string) string {
	v, _ := request.Params.Arguments[name].(string)
	return strings.TrimSpace(v)
}

func argStringOr(request mcp.CallToolRequest, name, fallback string) string {
	if v := argString(request, name); v != "" {
		return v
	}
	return fallback
}

func argBool(request mcp.CallToolRequest, name string) bool {
	switch v := request.Params.Arguments[name].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes" || v == "1"
	}
	return false
}

// argInt accepts a JSON number or a numeric string; missing or unparseable
// values yield the fallback.
func argInt(request mcp.CallToolRequest, name string, fallback int) int {
	switch v := request.Params.Arguments[name].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// argStringList accepts a JSON array, a JSON-encoded array string, or a
// single bare string.
func argStringList(request mcp.CallToolRequest, name string) ([]string, error) {
	switch v := request.Params.Arguments[name].(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("'%s' entries must all be strings", name)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		if strings.HasPrefix(v, "[") {
			var parsed []string
			if err := json.Unmarshal([]byte(v), &parsed); err != nil {
				return nil, fmt.Errorf("'%s' must be valid JSON when provided as a string: %v", name, err)
			}
			out := parsed[:0]
			for _, s := range parsed {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		}
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("'%s' must be a list of strings", name)
	}
}

// argStringMap accepts a JSON object or a JSON-encoded object string.
func argStringMap(request mcp.CallToolRequest, name string) (map[string]string, error) {
	toStringMap := func(m map[string]any) (map[string]string, error) {
		out := make(map[string]string, len(m))
		for k, raw := range m {
			switch v := raw.(type) {
			case string:
				out[k] = v
			case float64, bool:
				out[k] = fmt.Sprintf("%v", v)
			default:
				return nil, fmt.Errorf("'%s' values must be scalars", name)
			}
		}
		return out, nil
	}

	switch v := request.Params.Arguments[name].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return toStringMap(v)
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("invalid JSON in '%s' parameter: %v", name, err)
		}
		return toStringMap(parsed)
	default:
		return nil, fmt.Errorf("'%s' must be an object or JSON string", name)
	}
}

// argAnyMap accepts a JSON object (or JSON-encoded object string) with
// arbitrary values.
func argAnyMap(request mcp.CallToolRequest, name string) (map[string]any, error) {
	switch v := request.Params.Arguments[name].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("invalid JSON in '%s' parameter: %v", name, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("'%s' must be an object or JSON string", name)
	}
}

func errorResult(formatStr string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(formatStr, args...))
}
