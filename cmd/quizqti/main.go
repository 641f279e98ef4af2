// Command quizqti converts plain-text quizzes into QTI packages that Canvas
// can import, and serves the same conversion over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/qti"
	"github.com/FocuswithJustin/quizqti/internal/config"
	"github.com/FocuswithJustin/quizqti/internal/convert"
	"github.com/FocuswithJustin/quizqti/internal/logging"
	"github.com/FocuswithJustin/quizqti/internal/mathcache"
	"github.com/FocuswithJustin/quizqti/internal/server"
	"github.com/FocuswithJustin/quizqti/internal/validation"
)

var version = "0.1.0"

// CLI defines the command-line interface for quizqti.
type CLI struct {
	// Global flags
	Config    string `help:"Config file path (default: $XDG_CONFIG_HOME/quizqti/config.yaml)" type:"path" env:"QUIZQTI_CONFIG"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json); follows the terminal when unset"`
	NoColor   bool   `name:"no-color" help:"Disable colored output" env:"NO_COLOR"`

	Convert   ConvertCmd   `cmd:"" help:"Convert a quiz text file into a QTI zip"`
	Solutions SolutionsCmd `cmd:"" help:"Write the answer key of a quiz"`
	Check     CheckCmd     `cmd:"" help:"Validate a quiz text file or summarize a QTI zip"`
	Serve     ServeCmd     `cmd:"" help:"Start the HTTP conversion service"`
	Cache     CacheGroup   `cmd:"" help:"Inspect the MathML cache"`
	Token     TokenCmd     `cmd:"" help:"Issue an API token for the HTTP service"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// App is the state shared by every command.
type App struct {
	Ctx    context.Context
	Config config.Config
	Stdout io.Writer
	Stderr io.Writer
	Styles Styles
}

// RenderFlags are the rendering options a command line may override.
type RenderFlags struct {
	Seed           string `help:"Seed for the solutions draw of question groups" placeholder:"N"`
	RunCodeBlocks  bool   `name:"run-code-blocks" help:"Execute code blocks marked {.lang .run} and insert their output"`
	PandocMathML   bool   `name:"pandoc-mathml" help:"Convert LaTeX to MathML with pandoc instead of Canvas equation images"`
	LatexRenderURL string `name:"latex-render-url" help:"Canvas LaTeX rendering URL, e.g. https://<institution>.instructure.com/equation_images"`
	ImagesBase64   bool   `name:"images-base64" help:"Inline local images as data URIs instead of bundling them"`
}

// options merges the flags over the config for a document at path.
func (f RenderFlags) options(cfg config.Config, path string) (convert.Options, error) {
	opts := convert.OptionsFromConfig(cfg)
	opts.Source = strconv.Quote(path)
	if abs, err := filepath.Abs(path); err == nil {
		opts.BaseDir = filepath.Dir(abs)
	}
	if f.Seed != "" {
		n, err := strconv.ParseUint(f.Seed, 10, 64)
		if err != nil {
			return opts, errors.NewValidation("seed", "must be a non-negative integer")
		}
		opts.Seed = &n
	}
	opts.RunCodeBlocks = opts.RunCodeBlocks || f.RunCodeBlocks
	opts.PandocMathML = opts.PandocMathML || f.PandocMathML
	opts.ImagesBase64 = opts.ImagesBase64 || f.ImagesBase64
	if f.LatexRenderURL != "" {
		opts.LatexRenderURL = f.LatexRenderURL
	}
	date, err := sourceDate()
	if err != nil {
		return opts, err
	}
	opts.Date = date
	return opts, nil
}

// sourceDate honours SOURCE_DATE_EPOCH so packages can be rebuilt
// byte for byte. Without it the package carries a fixed date.
func sourceDate() (time.Time, error) {
	v := os.Getenv("SOURCE_DATE_EPOCH")
	if v == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, errors.NewValidation("SOURCE_DATE_EPOCH", fmt.Sprintf("%q is not a Unix timestamp", v))
	}
	return time.Unix(n, 0).UTC(), nil
}

// readQuiz reads a quiz text file.
func readQuiz(path string) (string, error) {
	if err := validation.ValidatePath(path); err != nil {
		return "", fmt.Errorf("invalid input path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewIO("open", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, validation.MaxFileSize+1))
	if err != nil {
		return "", errors.NewIO("read", path, err)
	}
	if len(data) > validation.MaxFileSize {
		return "", errors.NewValidation("file", fmt.Sprintf("%s exceeds %d bytes", path, validation.MaxFileSize))
	}
	if len(data) > 0 {
		if err := validation.CheckQuizText(data); err != nil {
			return "", errors.NewUnsupported(path, "quiz files must be UTF-8 text ("+err.Error()+")")
		}
	}
	return string(data), nil
}

// openCache opens the MathML cache when pandoc conversion is on. A cache
// that cannot be opened only costs speed, so it is logged and skipped.
func (a *App) openCache(enabled bool) (convert.MathCache, func()) {
	if !enabled {
		return nil, func() {}
	}
	store, err := mathcache.Open(a.Ctx, a.Config.MathCache())
	if err != nil {
		logging.Warn("math cache disabled", "error", err)
		return nil, func() {}
	}
	return store, func() { store.Close() }
}

func (a *App) compile(path string, flags RenderFlags) (*convert.Result, *convert.Converter, convert.Options, func(), error) {
	text, err := readQuiz(path)
	if err != nil {
		return nil, nil, convert.Options{}, nil, err
	}
	opts, err := flags.options(a.Config, path)
	if err != nil {
		return nil, nil, opts, nil, err
	}
	cache, closeCache := a.openCache(opts.PandocMathML)
	conv := convert.New(cache)
	res, err := conv.Compile(a.Ctx, text, opts)
	if err != nil {
		closeCache()
		return nil, nil, opts, nil, err
	}
	return res, conv, opts, closeCache, nil
}

// ConvertCmd converts a quiz text file into a QTI zip.
type ConvertCmd struct {
	File          string `arg:"" help:"Quiz text file" type:"existingfile"`
	Output        string `short:"o" help:"Archive path (default: the input path with a .zip extension)" type:"path"`
	Solutions     string `help:"Also write the answer key to FILE (.md, .html or .pdf)" type:"path" placeholder:"FILE"`
	OnlySolutions bool   `name:"only-solutions" help:"Write only the answer key, not the archive"`
	RenderFlags   `embed:""`
}

func (c *ConvertCmd) Run(app *App) error {
	if c.OnlySolutions && c.Solutions == "" {
		return errors.NewValidation("only-solutions", "requires --solutions FILE")
	}
	if c.Solutions != "" {
		if _, err := convert.FormatFromPath(c.Solutions); err != nil {
			return err
		}
	}
	res, conv, opts, done, err := app.compile(c.File, c.RenderFlags)
	if err != nil {
		return err
	}
	defer done()

	if !c.OnlySolutions {
		out := c.Output
		if out == "" {
			out = convert.ArchivePath(c.File)
		}
		if err := convert.WriteArchive(res, out); err != nil {
			return errors.NewIO("write", out, err)
		}
		s := convert.Summarize(res.Quiz)
		fmt.Fprintf(app.Stdout, "%s %s (%d questions, %s points)\n",
			app.Styles.OK("Wrote"), out, s.Questions, formatPoints(s.PointsPossible))
	}
	if c.Solutions != "" {
		if err := conv.WriteSolutions(app.Ctx, res, c.Solutions, opts); err != nil {
			return err
		}
		fmt.Fprintf(app.Stdout, "%s %s\n", app.Styles.OK("Wrote"), c.Solutions)
	}
	return nil
}

// SolutionsCmd writes only the answer key.
type SolutionsCmd struct {
	File        string `arg:"" help:"Quiz text file" type:"existingfile"`
	Output      string `short:"o" required:"" help:"Answer key path (.md, .html or .pdf)" type:"path"`
	RenderFlags `embed:""`
}

func (c *SolutionsCmd) Run(app *App) error {
	cmd := ConvertCmd{File: c.File, Solutions: c.Output, OnlySolutions: true, RenderFlags: c.RenderFlags}
	return cmd.Run(app)
}

// CheckCmd validates a quiz or summarizes a package.
type CheckCmd struct {
	File        string `arg:"" help:"Quiz text file or QTI zip" type:"existingfile"`
	JSON        bool   `help:"Print the summary as JSON"`
	RenderFlags `embed:""`
}

func (c *CheckCmd) Run(app *App) error {
	f, err := os.Open(c.File)
	if err != nil {
		return errors.NewIO("open", c.File, err)
	}
	ft, err := validation.ValidateFileType(f, c.File)
	f.Close()
	if err != nil {
		return errors.NewUnsupported(c.File, err.Error())
	}

	var summary interface{}
	var rows [][2]string
	if ft == validation.FileTypeZip {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return errors.NewIO("read", c.File, err)
		}
		s, err := qti.ReadArchive(data)
		if err != nil {
			return err
		}
		summary = server.ArchiveInfo{
			AssessmentID:   s.AssessmentID,
			Title:          s.Title,
			Questions:      s.Questions(),
			Groups:         len(s.Groups),
			Images:         len(s.Images),
			PointsPossible: s.PointsPossible(),
		}
		rows = [][2]string{
			{"Title", s.Title},
			{"Assessment", s.AssessmentID},
			{"Questions", strconv.Itoa(s.Questions())},
			{"Groups", strconv.Itoa(len(s.Groups))},
			{"Images", strconv.Itoa(len(s.Images))},
			{"Points", formatPoints(s.PointsPossible())},
		}
	} else {
		text, err := readQuiz(c.File)
		if err != nil {
			return err
		}
		opts, err := c.options(app.Config, c.File)
		if err != nil {
			return err
		}
		cache, done := app.openCache(opts.PandocMathML)
		defer done()
		q, err := convert.New(cache).Parse(app.Ctx, text, opts)
		if err != nil {
			return err
		}
		s := convert.Summarize(q)
		summary = s
		rows = [][2]string{
			{"Title", s.Title},
			{"Questions", strconv.Itoa(s.Questions)},
			{"Groups", strconv.Itoa(s.Groups)},
			{"Text regions", strconv.Itoa(s.TextRegions)},
			{"Images", strconv.Itoa(s.Images)},
			{"Points", formatPoints(s.PointsPossible)},
		}
	}

	if c.JSON {
		enc := json.NewEncoder(app.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Fprintf(app.Stdout, "%s %s\n", app.Styles.OK("OK"), c.File)
	fmt.Fprint(app.Stdout, app.Styles.Table(rows))
	return nil
}

// ServeCmd starts the HTTP conversion service.
type ServeCmd struct {
	Addr           string   `help:"Listen address (default from config, :8080)"`
	AllowedOrigins []string `name:"allowed-origin" help:"Allowed CORS and websocket origin (repeatable)"`
	RateLimit      int      `name:"rate-limit" default:"-1" help:"Requests per minute per client, 0 disables (default from config)"`
	PandocMathML   bool     `name:"pandoc-mathml" help:"Convert LaTeX to MathML with pandoc"`
	LatexRenderURL string   `name:"latex-render-url" help:"Canvas LaTeX rendering URL"`
}

func (c *ServeCmd) Run(app *App) error {
	cfg := server.ConfigFrom(app.Config)
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if len(c.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
	if c.RateLimit >= 0 {
		cfg.RateLimit = c.RateLimit
	}
	cfg.Convert.PandocMathML = cfg.Convert.PandocMathML || c.PandocMathML
	if c.LatexRenderURL != "" {
		cfg.Convert.LatexRenderURL = c.LatexRenderURL
	}
	date, err := sourceDate()
	if err != nil {
		return err
	}
	cfg.Convert.Date = date

	cache, done := app.openCache(cfg.Convert.PandocMathML)
	defer done()
	srv, err := server.New(cfg, convert.New(cache))
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintf(app.Stderr, "%s no jwt_secret configured, the API accepts unauthenticated requests\n", NewStyles(app.Stderr, app.Styles.NoColor).Warn("warning:"))
	}
	server.Version = version

	ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

// CacheGroup contains MathML cache operations.
type CacheGroup struct {
	Stats CacheStatsCmd `cmd:"" help:"Show cache statistics"`
	Prune CachePruneCmd `cmd:"" help:"Remove entries unused for more than max_unused conversions"`
	Clear CacheClearCmd `cmd:"" help:"Remove every cached conversion"`
}

func (a *App) openStore() (*mathcache.Store, error) {
	return mathcache.Open(a.Ctx, a.Config.MathCache())
}

type CacheStatsCmd struct {
	JSON bool `help:"Print statistics as JSON"`
}

func (c *CacheStatsCmd) Run(app *App) error {
	store, err := app.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	st, err := store.Stats(app.Ctx)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(app.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprint(app.Stdout, app.Styles.Table([][2]string{
		{"Driver", strings.TrimSpace(string(st.Driver) + " " + st.Backend)},
		{"Entries", strconv.FormatInt(st.Entries, 10)},
		{"Payload", formatBytes(st.PayloadBytes)},
		{"Stale", strconv.FormatInt(st.Stale, 10)},
		{"Max unused", strconv.Itoa(st.MaxUnused)},
	}))
	return nil
}

type CachePruneCmd struct{}

func (c *CachePruneCmd) Run(app *App) error {
	store, err := app.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	n, err := store.Prune(app.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "%s %d stale entries\n", app.Styles.OK("Pruned"), n)
	return nil
}

type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(app *App) error {
	store, err := app.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Clear(app.Ctx); err != nil {
		return err
	}
	fmt.Fprintf(app.Stdout, "%s the MathML cache\n", app.Styles.OK("Cleared"))
	return nil
}

// TokenCmd issues a bearer token signed with server.jwt_secret.
type TokenCmd struct {
	Subject string        `arg:"" optional:"" default:"quizqti" help:"Token subject"`
	TTL     time.Duration `name:"ttl" default:"24h" help:"Token lifetime"`
}

func (c *TokenCmd) Run(app *App) error {
	secret := app.Config.Server.JWTSecret
	if secret == "" {
		return errors.NewValidation("jwt_secret", "set server.jwt_secret or "+config.EnvJWTSecret)
	}
	tok, err := server.IssueToken(secret, c.Subject, c.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, tok)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(app *App) error {
	fmt.Fprintf(app.Stdout, "quizqti version %s\n", version)
	return nil
}

// setupLogging applies flags over the config. Commands other than serve
// only log warnings unless asked.
func setupLogging(cli *CLI, cfg config.Config, command string) error {
	name := cli.LogLevel
	if name == "" {
		name = cfg.Log.Level
	}
	if name == "" {
		name = "warn"
		if command == "serve" {
			name = "info"
		}
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	formatName := cli.LogFormat
	if formatName == "" {
		formatName = cfg.Log.Format
	}
	format, err := logging.ParseFormat(formatName)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// run parses args and executes the selected command, returning the exit
// code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("quizqti"),
		kong.Description("Convert plain-text quizzes into QTI packages for Canvas"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	styles := NewStyles(stderr, cli.NoColor)
	if err != nil {
		fmt.Fprintln(stderr, styles.Diagnostic(err))
		return 2
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintln(stderr, styles.Diagnostic(fmt.Errorf("config: %w", err)))
		return 1
	}
	command := ""
	if node := kctx.Selected(); node != nil {
		command = node.Name
	}
	if err := setupLogging(&cli, cfg, command); err != nil {
		fmt.Fprintln(stderr, styles.Diagnostic(err))
		return 2
	}

	app := &App{Ctx: ctx, Config: cfg, Stdout: stdout, Stderr: stderr, Styles: NewStyles(stdout, cli.NoColor)}
	if err := kctx.Run(app); err != nil {
		fmt.Fprintln(stderr, styles.Diagnostic(err))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
