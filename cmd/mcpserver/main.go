// Command mcpserver is the reference host application: it wires the
// sample tools, resources, prompts and auth providers under examples/
// into a server.Server and serves it over one of the three transports.
//
// Flag layout follows the teacher's cmd/main.go convention of a flat,
// flag-based CLI (also seen in the digital-io sibling's cmd/mcp/main.go)
// rather than a subcommand framework: -transport picks stdio/http/sse,
// -addr and -mcp-path configure the two HTTP-style transports, -auth
// picks none/sqlite/jwt, and -debug logs at DEBUG level instead of
// demoting stdio mode to FATAL-only (the teacher does the same demotion for
// stdio mode, since log lines on stdout would corrupt the JSON-RPC
// stream).
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/mcpkit/mcp/examples/auth/jwtauth"
	"github.com/mcpkit/mcp/examples/auth/sqliteauth"
	examplePrompts "github.com/mcpkit/mcp/examples/prompts"
	exampleResources "github.com/mcpkit/mcp/examples/resources"
	"github.com/mcpkit/mcp/examples/tools/basic"
	"github.com/mcpkit/mcp/examples/tools/fetch"
	"github.com/mcpkit/mcp/internal/logger"
	"github.com/mcpkit/mcp/pkg/auth"
	"github.com/mcpkit/mcp/pkg/server"
	"github.com/mcpkit/mcp/pkg/transport"
)

func main() {
	var (
		transportName = flag.String("transport", "stdio", "transport to serve on: stdio, http, or sse")
		addr          = flag.String("addr", ":8080", "listen address for the http/sse transports")
		mcpPath       = flag.String("mcp-path", "/mcp", "request path for the http transport")
		authKind      = flag.String("auth", "none", "auth provider: none, sqlite, or jwt")
		sqlitePath    = flag.String("sqlite-path", "mcp-tokens.db", "sqlite database path when -auth=sqlite")
		jwtSecret     = flag.String("jwt-secret", "", "HMAC signing secret when -auth=jwt")
		requireAuth   = flag.Bool("require-auth", false, "reject unauthenticated callers outright")
		promptDir     = flag.String("prompt-dir", "", "directory for stored prompt templates (empty: ~/.mcp/prompts)")
		debug         = flag.Bool("debug", false, "keep logging at DEBUG level instead of FATAL-only")
	)
	flag.Parse()

	logger.SetLogOutput('f')
	logger.SetShowDateTime(true)
	if *debug {
		logger.SetLevel(logger.DEBUG)
	} else if *transportName == "stdio" {
		// Log lines on stdout would corrupt the JSON-RPC wire stream.
		logger.SetLevel(logger.FATAL)
	}

	t, err := buildTransport(*transportName, *addr, *mcpPath)
	if err != nil {
		logger.Fatal("mcpserver:", err)
	}

	srv := server.New("mcpkit-reference-server", "0.1.0", t).RequireAuth(*requireAuth)

	if err := registerExamples(srv, *promptDir); err != nil {
		logger.Fatal("mcpserver: registering example components:", err)
	}

	if err := configureAuth(srv, *authKind, *sqlitePath, *jwtSecret); err != nil {
		logger.Fatal("mcpserver: configuring auth:", err)
	}

	if err := srv.Serve(); err != nil {
		logger.Fatal("mcpserver:", err)
	}
}

func buildTransport(name, addr, mcpPath string) (transport.Transport, error) {
	switch name {
	case "stdio":
		return transport.NewStdioTransport(), nil
	case "http":
		return transport.NewHTTPTransport(addr, mcpPath), nil
	case "sse":
		return transport.NewSSETransport(addr), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want stdio, http, or sse)", name)
	}
}

func registerExamples(srv *server.Server, promptDir string) error {
	calcTool, calcHandler := basic.CalculatorTool()
	if err := srv.RegisterTool(calcTool, calcHandler, nil); err != nil {
		return err
	}
	clockTool, clockHandler := basic.ClockTool()
	if err := srv.RegisterTool(clockTool, clockHandler, nil); err != nil {
		return err
	}
	fetchTool, fetchHandler := fetch.Tool()
	if err := srv.RegisterTool(fetchTool, fetchHandler, nil); err != nil {
		return err
	}

	docsResource, docsHandler := exampleResources.ExampleDocumentation()
	if err := srv.RegisterResource(docsResource, docsHandler, nil); err != nil {
		return err
	}
	weatherResource, weatherHandler := exampleResources.WeatherData()
	if err := srv.RegisterResource(weatherResource, weatherHandler, nil); err != nil {
		return err
	}
	userTmpl, userHandler := exampleResources.UserByID()
	if err := srv.RegisterResourceTemplate(userTmpl, userHandler, nil); err != nil {
		return err
	}

	promptRegistrar, err := examplePrompts.New(promptDir)
	if err != nil {
		return err
	}
	if err := promptRegistrar.RegisterAll(srv.RegisterPrompt); err != nil {
		return err
	}

	return nil
}

func configureAuth(srv *server.Server, kind, sqlitePath, jwtSecret string) error {
	switch kind {
	case "none":
		return nil
	case "sqlite":
		provider, err := sqliteauth.Open(sqlitePath)
		if err != nil {
			return err
		}
		srv.WithProvider(auth.Provider(provider))
		return nil
	case "jwt":
		if jwtSecret == "" {
			return fmt.Errorf("-jwt-secret is required when -auth=jwt")
		}
		provider := jwtauth.New(jwtSecret, 24*time.Hour, "mcpkit-reference-server")
		srv.WithProvider(auth.Provider(provider))
		return nil
	default:
		return fmt.Errorf("unknown auth kind %q (want none, sqlite, or jwt)", kind)
	}
}
