package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jacques/jacques/internal/analytics"
	"github.com/jacques/jacques/internal/catalog"
	"github.com/jacques/jacques/internal/config"
	"github.com/jacques/jacques/internal/eventpipe"
	"github.com/jacques/jacques/internal/httpapi"
	"github.com/jacques/jacques/internal/pathenc"
	"github.com/jacques/jacques/internal/searchindex"
	"github.com/jacques/jacques/internal/sessionregistry"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = ""
)

const (
	claudeProcessName = "claude"
	discoveryTimeout  = 5 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "extract":
			runExtract(os.Args[2:])
			return
		case "reindex":
			runReindex(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "version", "--version", "-v":
			fmt.Printf("jacques %s (commit %s, built %s)\n", version, commit, buildDate)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	runServe(os.Args[1:])
}

func printUsage() {
	fmt.Printf(`jacques %s - live session registry and conversation archive for AI coding tools

Watches Claude Code (and compatible) transcript directories, tracks live
sessions, extracts a cross-project archive, and serves a REST/WebSocket
API for observing them.

Usage:
  jacques [flags]             Start the core (default command)
  jacques serve [flags]       Start the core (explicit)
  jacques extract [flags]     Extract one or all projects' catalogs
  jacques reindex [flags]     Rebuild the global keyword index and analytics cache
  jacques version             Show version information
  jacques help                Show this help

Server flags:
  -host string         Host to bind to (default "127.0.0.1")
  -port int            REST API port (default 8089)
  -ws-port int         WebSocket port (default 8090)

Extract flags:
  -project string      Encoded or absolute project directory (default: all)
  -force                Re-extract even if the manifest looks up to date

Environment variables:
  JACQUES_DATA_DIR         Data directory (config, cache, archive)
  JACQUES_TRANSCRIPT_ROOT  Transcript root directory (default ~/.claude)
  JACQUES_HOST             Host to bind to
  JACQUES_PORT             REST API port
  JACQUES_WS_PORT          WebSocket port

Data is stored in ~/.jacques/ by default.
`, version)
}

func mustLoadConfig(args []string) config.Config {
	fs := flag.NewFlagSet("jacques", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: jacques [serve] [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	config.RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data dir: %v", err)
	}
	return cfg
}

func setupLogFile(dataDir string) {
	logPath := filepath.Join(dataDir, "debug.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("warning: cannot open log file: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
}

func archiveIndexPath(dataDir string) string {
	return filepath.Join(dataDir, "archive", "index.json")
}

func analyticsDBPath(dataDir string) string {
	return filepath.Join(dataDir, "cache", "analytics.db")
}

func runServe(args []string) {
	start := time.Now()
	cfg := mustLoadConfig(args)
	setupLogFile(cfg.DataDir)

	db, err := analytics.Open(analyticsDBPath(cfg.DataDir))
	if err != nil {
		log.Fatalf("opening analytics cache: %v", err)
	}
	defer db.Close()

	index, err := searchindex.Load(archiveIndexPath(cfg.DataDir))
	if err != nil {
		log.Fatalf("loading search index: %v", err)
	}

	var pipe *eventpipe.Pipe
	registry := sessionregistry.New(func(sig sessionregistry.Signal) {
		pipe.OnRegistrySignal(sig)
	})
	hub := eventpipe.NewHub()
	notifier := eventpipe.NewNotifier(eventpipe.DefaultNotifySettings())
	pipe = eventpipe.NewPipe(registry, hub, notifier, newTerminalActivator())

	discoverCtx, cancelDiscover := context.WithTimeout(context.Background(), discoveryTimeout)
	if err := sessionregistry.RunDiscovery(discoverCtx, registry, cfg.TranscriptRoot, claudeProcessName, nil); err != nil {
		log.Printf("warning: startup session discovery failed: %v", err)
	}
	cancelDiscover()

	listener, err := eventpipe.NewListener(eventpipe.SocketPath, pipe)
	if err != nil {
		log.Fatalf("binding event socket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("shutting down...")
		cancel()
	}()

	go func() {
		if err := listener.Serve(ctx); err != nil {
			log.Printf("event socket listener stopped: %v", err)
		}
	}()

	restPort, err := httpapi.FindAvailablePort(cfg.Host, cfg.Port)
	if err != nil {
		log.Fatalf("finding REST port: %v", err)
	}
	if restPort != cfg.Port {
		fmt.Printf("Port %d in use, using %d\n", cfg.Port, restPort)
	}
	cfg.Port = restPort

	wsPort, err := httpapi.FindAvailablePort(cfg.Host, cfg.WSPort)
	if err != nil {
		log.Fatalf("finding WebSocket port: %v", err)
	}
	if wsPort != cfg.WSPort {
		fmt.Printf("Port %d in use, using %d\n", cfg.WSPort, wsPort)
	}
	cfg.WSPort = wsPort

	srv := httpapi.New(cfg, registry, pipe, db, index)
	ws := httpapi.NewWSServer(cfg, hub, pipe)

	errc := make(chan error, 2)
	go func() { errc <- srv.ListenAndServe(ctx) }()
	go func() { errc <- ws.ListenAndServe(ctx) }()

	fmt.Printf(
		"jacques %s listening at http://%s:%d (ws :%d) (started in %s)\n",
		version, cfg.Host, cfg.Port, cfg.WSPort,
		time.Since(start).Round(time.Millisecond),
	)

	for range 2 {
		if err := <-errc; err != nil {
			log.Printf("server error: %v", err)
		}
	}
	listener.Close()
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	project := fs.String("project", "", "encoded or absolute project directory (default: all)")
	force := fs.Bool("force", false, "re-extract even if the manifest looks up to date")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()
	opts := catalog.Options{Force: *force}

	var transcriptDirs []string
	if *project != "" {
		transcriptDirs = []string{resolveTranscriptDir(cfg.TranscriptRoot, *project)}
	} else {
		transcriptDirs, err = catalog.DiscoverProjects(cfg.TranscriptRoot)
		if err != nil {
			log.Fatalf("discovering projects: %v", err)
		}
	}

	var extracted, skipped int
	for _, dir := range transcriptDirs {
		encoded := filepath.Base(dir)
		projectRoot := pathenc.Resolve(encoded)
		res := catalog.NewExtractor(projectRoot).ExtractProject(ctx, dir, opts)
		extracted += res.Extracted
		skipped += res.Skipped
		for _, e := range res.Errors {
			log.Printf("%s: %v", projectRoot, e)
		}
	}
	fmt.Printf("extracted %d sessions, skipped %d\n", extracted, skipped)
}

// resolveTranscriptDir accepts either an already-encoded directory
// name or an absolute project path and returns the transcript
// directory jacques discovers session files under.
func resolveTranscriptDir(transcriptRoot, project string) string {
	if filepath.IsAbs(project) && filepath.Dir(project) == filepath.Join(transcriptRoot, "projects") {
		return project
	}
	encoded := project
	if filepath.IsAbs(project) {
		encoded = pathenc.Encode(project)
	}
	return filepath.Join(transcriptRoot, "projects", encoded)
}

func runReindex(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	db, err := analytics.Open(analyticsDBPath(cfg.DataDir))
	if err != nil {
		log.Fatalf("opening analytics cache: %v", err)
	}
	defer db.Close()

	transcriptDirs, err := catalog.DiscoverProjects(cfg.TranscriptRoot)
	if err != nil {
		log.Fatalf("discovering projects: %v", err)
	}

	index := searchindex.New()
	manifests := make(map[string]*catalog.SessionManifest)

	for _, dir := range transcriptDirs {
		encoded := filepath.Base(dir)
		projectRoot := pathenc.Resolve(encoded)
		idx, err := catalog.LoadProjectIndex(projectRoot)
		if err != nil {
			log.Printf("%s: %v", projectRoot, err)
			continue
		}
		for _, ref := range idx.Sessions {
			m, err := catalog.LoadManifest(projectRoot, ref.SessionID)
			if err != nil {
				log.Printf("%s/%s: %v", projectRoot, ref.SessionID, err)
				continue
			}
			manifestID := projectRoot + ":" + ref.SessionID
			index.Add(m, manifestID, projectRoot)
			manifests[manifestID] = m
		}
	}

	if err := index.Save(archiveIndexPath(cfg.DataDir)); err != nil {
		log.Fatalf("saving index: %v", err)
	}
	if err := db.Rebuild(manifests); err != nil {
		log.Fatalf("rebuilding analytics cache: %v", err)
	}
	fmt.Printf("reindexed %d sessions across %d projects\n", len(manifests), len(transcriptDirs))
}
