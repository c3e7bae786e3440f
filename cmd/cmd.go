// Package cmd provides the CLI commands for neuassist.
//
// Commands:
//   - serve: HTTP API server with SSE chat streaming
//   - mcp: Model Context Protocol server exposing the academic tools
//
// Both commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the neuassist CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		return runServe()
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "mcp":
		return runMCP()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("neuassist - NEU academic assistant backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  neuassist serve [addr] Start HTTP API server (default command, addr 127.0.0.1:8000)")
	fmt.Println("  neuassist mcp          Start MCP server (stdio transport)")
	fmt.Println("  neuassist --version    Show version information")
	fmt.Println("  neuassist --help       Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DASHSCOPE_API_KEY      Required: upstream provider API key")
	fmt.Println("  NEU_USERNAME           Optional: campus SSO username (enables tools)")
	fmt.Println("  NEU_PASSWORD           Optional: campus SSO password")
	fmt.Println("  DEBUG                  Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.neuassist/config.yaml")
}
