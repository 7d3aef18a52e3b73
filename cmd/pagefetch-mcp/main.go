package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/pagefetch/cleaner"
	"github.com/use-agent/pagefetch/models"
)

// requestTimeout covers the slowest crawl the API will run with default
// settings: four attempts of a 60s load window plus actions.
const requestTimeout = 5 * time.Minute

func main() {
	apiURL := os.Getenv("PAGEFETCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8191"
	}

	s := server.NewMCPServer(
		"pagefetch",
		models.Version,
		server.WithToolCapabilities(false),
	)

	fetchPageTool := mcp.NewTool("fetch_page",
		mcp.WithDescription("Render a web page in a real browser (JavaScript, cookies, optional click/type steps) and return its final content."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to render"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'markdown' (default), 'text' or 'html'"),
			mcp.Enum("markdown", "text", "html"),
		),
		mcp.WithString("backend",
			mcp.Description("Browser backend: 'v1' (rod, default) or 'v2' (chromedp)"),
			mcp.Enum("v1", "v2"),
		),
		mcp.WithString("actions",
			mcp.Description(`JSON array of steps run after the page loads, e.g. [{"trigger":"clickable","find":"Accept"},{"trigger":"input","select":"#q","value":"golang"}]`),
		),
		mcp.WithNumber("retry_count",
			mcp.Description("Additional attempts after the first when the page stays blank (default: 3)"),
		),
	)

	s.AddTool(fetchPageTool, handleFetchPage(apiURL, cleaner.NewConverter()))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the fetch API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleFetchPage(apiURL string, conv *cleaner.Converter) server.ToolHandlerFunc {
	client := &http.Client{Timeout: requestTimeout}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := models.FetchPayload{URL: url}
		if raw := request.GetString("actions", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &payload.Actions); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid actions: %v", err)), nil
			}
		}
		if n := request.GetInt("retry_count", -1); n >= 0 {
			payload.RetryCount = &n
		}

		path := "/v1"
		if request.GetString("backend", "v1") == "v2" {
			path = "/v2"
		}

		body, err := apiPost(ctx, client, apiURL, path, payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := renderEnvelope(body, request.GetString("format", "markdown"), conv)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// renderEnvelope turns an API response body into the tool's text output.
func renderEnvelope(body []byte, format string, conv *cleaner.Converter) (string, error) {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return "", fmt.Errorf("request rejected: %s", errResp.Error.Message)
	}

	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if env.Solution == nil {
		return "", fmt.Errorf("response has no solution")
	}
	sol := env.Solution
	if sol.Failed() {
		return "", fmt.Errorf("fetch failed: %s", sol.Response)
	}

	var content string
	switch format {
	case "html":
		content = sol.Response
	case "text":
		text, err := cleaner.Text(sol.Response)
		if err != nil {
			return "", fmt.Errorf("failed to extract text: %w", err)
		}
		content = text
	default:
		md, err := conv.ToMarkdown(sol.Response, sol.URL)
		if err != nil {
			return "", fmt.Errorf("failed to convert to markdown: %w", err)
		}
		content = md
	}

	var b strings.Builder
	if title := cleaner.Title(sol.Response); title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	fmt.Fprintf(&b, "Source: %s\n\n", sol.URL)
	b.WriteString(content)
	return b.String(), nil
}
