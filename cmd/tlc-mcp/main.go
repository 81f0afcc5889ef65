package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ironsheep/tlc-eval-mcp/internal/config"
	"github.com/ironsheep/tlc-eval-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("tlc-eval-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("tlc-eval-mcp - MCP server for TLC plate evaluation")
			fmt.Println()
			fmt.Println("Usage: tlc-eval-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  TLC_MCP_LOG_LEVEL=debug      Log pipeline stages to stderr")
			fmt.Printf("  %s=<file.yaml>     Pipeline tuning (see internal/config)\n", config.EnvPath)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	stages := log.New(io.Discard, "", 0)
	if os.Getenv("TLC_MCP_LOG_LEVEL") == "debug" {
		log.Printf("TLC MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		stages = log.New(os.Stderr, "tlc: ", log.Ldate|log.Ltime)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	srv := server.New(cfg, stages)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
