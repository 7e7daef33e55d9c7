package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geostory/internal/logging"
	"github.com/joeblew999/geostory/internal/narrative"
	"github.com/joeblew999/geostory/internal/server"
	"github.com/joeblew999/geostory/internal/service"
)

// Options defines all CLI flags and env vars for the story server.
// Flags: --host, --port, --story, --data-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_STORY, SERVICE_DATA_DIR, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	Story        string `doc:"Story YAML file, empty for the built-in story" short:"s"`
	DataDir      string `doc:"Directory for local dataset files, overrides the story"`
	DB           string `doc:"DuckDB file for the feature catalog, empty for in-memory"`
	NoDB         bool   `doc:"Disable the feature catalog"`
	Templates    string `doc:"Directory of HTML fragment templates, empty for the built-in set"`
	LogLevel     string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogPretty    bool   `doc:"Human readable console logs"`
	FetchTimeout int    `doc:"Seconds allowed per HTTP dataset fetch" default:"30"`
	FetchRate    int    `doc:"Maximum HTTP fetches per second, 0 for unlimited" default:"0"`
	Concurrency  int    `doc:"Datasets fetched at once" default:"4"`
}

func newServer(opts *Options) *server.Server {
	if err := logging.Setup(opts.LogLevel, opts.LogPretty); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	srv, err := server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		StoryFile:    opts.Story,
		DataDir:      opts.DataDir,
		DBPath:       opts.DB,
		NoDB:         opts.NoDB,
		TemplatesDir: opts.Templates,
		FetchTimeout: time.Duration(opts.FetchTimeout) * time.Second,
		FetchRate:    float64(opts.FetchRate),
		Concurrency:  opts.Concurrency,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			srv := newServer(opts)
			defer srv.Close()

			if _, err := srv.Load(context.Background()); err != nil {
				log.Fatalf("Loading story: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geostory server starting...\n")
			fmt.Printf("  Story:   %s\n", srv.Story().Title)
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", srv.Story().DataDir)
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Events:  %s/api/v1/story/events\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "geostory"
	cli.Root().Short = "Scroll-driven geospatial story server"
	cli.Root().Version = "0.1.0"

	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			srv := newServer(opts)
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(srv.OpenAPI())
			} else {
				output, err = json.MarshalIndent(srv.OpenAPI(), "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Root().AddCommand(&cobra.Command{
		Use:   "resolve [datasets...]",
		Short: "Fetch datasets and report where each one loaded from",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			srv := newServer(opts)
			defer srv.Close()

			infos, err := srv.Datasets().Load(context.Background(), args...)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			failed := false
			for _, info := range infos {
				printInfo(info)
				failed = failed || info.Status != service.StatusReady
			}
			if failed {
				os.Exit(2)
			}
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "walk [chapters...]",
		Short: "Print the map commands each chapter entry emits",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoDB = true
			srv := newServer(opts)
			defer srv.Close()

			st := srv.Story()
			if _, err := srv.Datasets().Load(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			rec := narrative.NewRecorder()
			walker, err := service.NewStoryService(st, srv.Datasets(), rec, nil, logging.Component("walk"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			chapters := args
			if len(chapters) == 0 {
				for _, ch := range st.Chapters {
					chapters = append(chapters, ch.Name)
				}
			}
			for _, name := range chapters {
				rec.Reset()
				if err := walker.Enter(name); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("== %s\n", name)
				for _, line := range rec.Strings() {
					fmt.Printf("  %s\n", line)
				}
			}
		}),
	})

	cli.Run()
}

func printInfo(info service.DatasetInfo) {
	fmt.Printf("%-12s %-11s attempts=%d", info.Key, info.Status, info.Attempts)
	if info.Status != service.StatusReady {
		fmt.Printf("  %s\n", info.Error)
		return
	}
	fmt.Printf(" features=%d kind=%s from=%s\n", info.Features, info.Kind, info.Location)
	if info.Projected {
		fmt.Printf("  reprojected from Web Mercator\n")
	}
	if info.Dropped > 0 {
		fmt.Printf("  %d features without a usable geometry\n", info.Dropped)
	}
	if len(info.Extent) == 4 {
		fmt.Printf("  extent: [%.6f, %.6f, %.6f, %.6f]\n", info.Extent[0], info.Extent[1], info.Extent[2], info.Extent[3])
	}
	if len(info.Categories) > 0 {
		names := make([]string, 0, len(info.Categories))
		for name := range info.Categories {
			names = append(names, name)
		}
		slices.Sort(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%d", name, info.Categories[name])
		}
		fmt.Printf("  categories: %s\n", strings.Join(parts, " "))
	}
}
