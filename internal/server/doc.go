// Package server implements the MCP (Model Context Protocol) server for TLC
// plate evaluation.
//
// This package provides a JSON-RPC 2.0 server that exposes the plate pipeline
// through the MCP protocol, so that an assistant can take a photograph of a
// developed thin-layer chromatography plate through to per-spot percentages
// one stage at a time, or in a single call.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//
// Plate Stages, in pipeline order:
//   - tlc_detect_plate: Find the plate corners (or the inset fallback)
//   - tlc_rectify: Warp the plate upright, writes warped-*.png
//   - tlc_remove_background: Subtract the fitted illumination, writes
//     background_fit-*.png and blobs-*.png
//   - tlc_detect_blobs: Find spots on a blobs-*.png
//   - tlc_integrate_blobs: Per-spot signal
//   - tlc_fit_percentages: Calibrate signals against reference spots
//
// Full Evaluation:
//   - tlc_analyze: All of the above in one call
//
// Stage tools that produce an image write it to the call's output_dir, the
// configured diagnostics directory, or a temporary directory, in that order
// of preference, and return the path for the next stage. Every call writes
// new files, so earlier paths stay valid. The temporary directory is removed
// when Run returns.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls, avoiding redundant disk I/O.
// The cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
// The server is typically started by an MCP client:
//
//	cfg, err := config.FromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg, nil)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
