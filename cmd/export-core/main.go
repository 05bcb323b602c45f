package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	kong "github.com/alecthomas/kong"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	export "github.com/opendatakit-go/export-core/export"
	version "github.com/opendatakit-go/export-core/pkg/version"
	schema "github.com/opendatakit-go/export-core/schema"
	server "github.com/mutablelogic/go-server"
	logger "github.com/mutablelogic/go-server/pkg/logger"
	gootel "go.opentelemetry.io/otel"
	trace "go.opentelemetry.io/otel/trace"
	terminal "golang.org/x/term"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	Debug   bool             `name:"debug" help:"Enable debug logging"`
	Verbose bool             `name:"verbose" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Print version and exit"`

	OTel struct {
		Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" help:"OpenTelemetry endpoint" default:""`
		Header   string `env:"OTEL_EXPORTER_OTLP_HEADERS" help:"OpenTelemetry collector headers"`
		Name     string `env:"OTEL_SERVICE_NAME" help:"OpenTelemetry service name" default:"${EXECUTABLE_NAME}"`
	} `embed:"" prefix:"otel."`

	ctx      context.Context
	cancel   context.CancelFunc
	logger   server.Logger
	tracer   trace.Tracer
	execName string
}

type CLI struct {
	Globals
	Run RunCommand `cmd:"" name:"run" help:"Export a form's submissions to CSV." default:"1"`
}

// RunCommand exports one form's submissions.
type RunCommand struct {
	FormDir              string        `arg:"" name:"form-dir" help:"Directory containing form.json and instances/"`
	ExportDir            string        `arg:"" name:"export-dir" help:"Directory CSV output is written to"`
	PrivateKey           string        `name:"private-key" help:"PEM-encoded RSA private key, required for encrypted forms"`
	From                 time.Time     `name:"from" help:"Only export submissions on or after this date (RFC3339)"`
	To                   time.Time     `name:"to" help:"Only export submissions on or before this date (RFC3339)"`
	ExportMedia          bool          `name:"export-media" help:"Copy referenced media files to --media-dir"`
	MediaDir             string        `name:"media-dir" help:"Directory media files are copied to, when --export-media is set"`
	Overwrite            bool          `name:"overwrite" default:"true" help:"Truncate and rewrite existing CSVs instead of appending"`
	SplitSelectMultiples bool          `name:"split-select-multiples" help:"Emit one column per choice for select-multi fields"`
	RemoveGroupNames     bool          `name:"remove-group-names" help:"Drop group name prefixes from inlined column headers"`
	IncludeGeoJSON       bool          `name:"include-geojson" help:"Append a GeoJSON column for geopoint/geotrace/geoshape fields"`
	Workers              int           `name:"workers" default:"4" help:"Bounded worker pool size for submission processing"`
}

func (cmd *RunCommand) Run(globals *Globals) error {
	tree, err := loadTree(filepath.Join(cmd.FormDir, "form.json"))
	if err != nil {
		return err
	}

	cfg := schema.ExportConfiguration{
		ExportDir:              cmd.ExportDir,
		OverwriteExistingFiles: cmd.Overwrite,
		DateRange:              schema.DateRange{From: cmd.From, To: cmd.To},
		ExportMedia:            cmd.ExportMedia,
		ExportMediaPath:        cmd.MediaDir,
		SplitSelectMultiples:   cmd.SplitSelectMultiples,
		RemoveGroupNames:       cmd.RemoveGroupNames,
		IncludeGeoJSON:         cmd.IncludeGeoJSON,
		WorkerCount:            cmd.Workers,
	}

	if tree.IsEncrypted() {
		if cmd.PrivateKey == "" {
			return fmt.Errorf("form %s is encrypted, --private-key is required", tree.FormID())
		}
		key, err := loadPrivateKey(cmd.PrivateKey)
		if err != nil {
			return err
		}
		cfg.PrivateKey = key
	}

	opts := []export.Opt{
		export.WithLogger(loggerAdapter{ctx: globals.ctx, log: globals.logger}),
	}
	if globals.tracer != nil {
		opts = append(opts, export.WithTracer(globals.tracer))
	}

	outcome, err := export.Export(globals.ctx, tree, cmd.FormDir, cfg, opts...)
	if err != nil {
		return err
	}

	globals.logger.Printf(globals.ctx, "%s: %s", tree.FormID(), outcome)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func main() {
	var execName string
	if exe, err := os.Executable(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	} else {
		execName = filepath.Base(exe)
	}

	cli := new(CLI)
	ctx := kong.Parse(cli,
		kong.Name(execName),
		kong.Description(execName+" command line interface"),
		kong.Vars{
			"version":         string(version.JSON(execName)),
			"EXECUTABLE_NAME": execName,
		},
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	cli.Globals.execName = execName

	os.Exit(run(ctx, &cli.Globals))
}

func run(ctx *kong.Context, globals *Globals) int {
	parent := context.Background()

	if isTerminal(os.Stderr) {
		globals.logger = logger.New(os.Stderr, logger.Term, globals.Debug)
	} else {
		globals.logger = logger.New(os.Stderr, logger.JSON, globals.Debug)
	}

	globals.ctx, globals.cancel = signal.NotifyContext(parent, os.Interrupt)
	defer globals.cancel()

	if globals.OTel.Endpoint != "" {
		provider, err := otel.NewProvider(globals.OTel.Endpoint, globals.OTel.Header, globals.OTel.Name)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 2
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			provider.Shutdown(shutdownCtx)
		}()

		gootel.SetTracerProvider(provider)
		globals.tracer = provider.Tracer(globals.OTel.Name)
	}

	if err := ctx.Run(globals); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	return 0
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return terminal.IsTerminal(int(f.Fd()))
	}
	return false
}
