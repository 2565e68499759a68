package main

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minios-linux/loxml/cache"
	"github.com/minios-linux/loxml/config"
	"github.com/minios-linux/loxml/i18n"
	"github.com/minios-linux/loxml/lockfile"
	"github.com/minios-linux/loxml/markup"
	"github.com/minios-linux/loxml/metafile"
	"github.com/minios-linux/loxml/pipeline"
	"github.com/minios-linux/loxml/settings"
	"github.com/minios-linux/loxml/translate"
)

// Set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	rootDir string
	verbose bool
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", blue("[INFO]"), fmt.Sprintf(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", green("[OK]"), fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("[WARN]"), fmt.Sprintf(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("[ERROR]"), fmt.Sprintf(format, args...))
}

// setupLogging routes library logs to a console writer on stderr.
func setupLogging(debug bool) {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
		NoColor:    color.NoColor,
	}).With().Timestamp().Logger()
}

func main() {
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loxml",
		Short: i18n.T("Translate XML resource files"),
		Long: i18n.T(`loxml translates the text of XML resource files (Android strings.xml
and similar) and writes one translated copy per target language next to
the source: res/values/strings.xml -> res/values-ru/strings.xml.

Settings are read from .loxml.yaml in the project root, from .env and
LOXML_* environment variables, and from command-line flags (highest
priority). API keys are managed with 'loxml auth'.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(verbose)
			return config.LoadEnv(rootDir)
		},
	}

	cmd.PersistentFlags().StringVar(&rootDir, "root", ".", i18n.T("Project root directory"))
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, i18n.T("Enable debug logging"))

	cmd.AddCommand(
		newTranslateCmd(),
		newParseCmd(),
		newLanguagesCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)
	return cmd
}

// ---------------------------------------------------------------------------
// Configuration helpers
// ---------------------------------------------------------------------------

// loadConfig loads .loxml.yaml, falling back to defaults, and applies the
// LOXML_* environment overrides.
func loadConfig() (*config.File, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default(rootDir)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// providerFlags are the flags shared by commands that talk to a provider.
type providerFlags struct {
	provider string
	model    string
	baseURL  string
	region   string
	apiKey   string
	proxy    string
	timeout  time.Duration
}

func (p *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.provider, "provider", "", i18n.T("Translation provider: ")+strings.Join(translate.ProviderIDs(), ", "))
	cmd.Flags().StringVar(&p.model, "model", "", i18n.T("Model name (AI providers)"))
	cmd.Flags().StringVar(&p.baseURL, "base-url", "", i18n.T("Custom API base URL"))
	cmd.Flags().StringVar(&p.region, "region", "", i18n.T("Azure resource region (microsoft)"))
	cmd.Flags().StringVar(&p.apiKey, "api-key", "", i18n.T("API key (or LOXML_API_KEY env var)"))
	cmd.Flags().StringVar(&p.proxy, "proxy", "", i18n.T("HTTP/HTTPS proxy URL"))
	cmd.Flags().DurationVar(&p.timeout, "timeout", 0, i18n.T("Request timeout (0 = provider default)"))

	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
}

func completeProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	defaults := translate.DefaultProviders()
	var out []string
	for _, id := range translate.ProviderIDs() {
		out = append(out, id+"\t"+defaults[id].Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// resolveProvider merges config, flags and stored credentials. Flags win
// over the config file; stored endpoint settings fill what is still empty.
func resolveProvider(cfg *config.File, f providerFlags) translate.Provider {
	prov := translate.Provider{
		ID:      cfg.Provider.ID,
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
		Region:  cfg.Provider.Region,
		Proxy:   cfg.Provider.Proxy,
		Timeout: f.timeout,
	}
	if id := strings.ToLower(f.provider); id != "" && id != prov.ID {
		// Endpoint settings of another provider do not apply.
		prov = translate.Provider{ID: id, Timeout: f.timeout}
	}
	if f.model != "" {
		prov.Model = f.model
	}
	if f.baseURL != "" {
		prov.BaseURL = f.baseURL
	}
	if f.region != "" {
		prov.Region = f.region
	}
	if f.proxy != "" {
		prov.Proxy = f.proxy
	}
	if prov.BaseURL == "" {
		prov.BaseURL = settings.GetBaseURL(prov.ID)
	}
	if prov.Region == "" {
		prov.Region = settings.GetRegion(prov.ID)
	}
	prov.APIKey = settings.ResolveAPIKey(prov.ID, f.apiKey)
	return prov
}

// newTranslator builds the provider client, with the translation memory in
// front of it when useCache is set. The returned close function releases
// the memory.
func newTranslator(prov translate.Provider, opts translate.Options, useCache bool) (translate.Translator, func(), error) {
	tr, err := translate.New(prov, opts)
	if err != nil {
		if prov.APIKey == "" {
			err = fmt.Errorf("%w\n\n%s", err, i18n.Tf("Store a key with: loxml auth login --provider %s", prov.ID))
		}
		return nil, nil, err
	}
	if !useCache {
		return tr, func() {}, nil
	}

	path, err := settings.CacheFilePath()
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Preload(context.Background()); err != nil {
		store.Close()
		return nil, nil, err
	}
	return cache.Wrap(store, tr), func() { store.Close() }, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logWarning("%s", i18n.T("Interrupted, stopping after the current request..."))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	providerFlags

	from          string
	to            []string
	attributes    bool
	exclude       []string
	chunkSize     int
	maxConcurrent int
	maxRetries    int
	prompt        string
	noCache       bool
	force         bool
	dryRun        bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate [files...]",
		Short: i18n.T("Translate resource files"),
		Long: i18n.T(`Translate XML resource files into the target languages.

Without file arguments the files listed in .loxml.yaml are used. Target
languages come from --to, then from .loxml.yaml, then from translated
directories that already exist next to each file (values-ru, values-de).

Files whose content did not change since the last run are skipped; see
loxml.lock in the project root. Use --force to translate them again.

Values are put back by content. --exclude only keeps attribute values out
of the request: a text with the same value still rewrites the attribute,
so <string name="Settings">Settings</string> gets its name translated too.

Examples:
  loxml translate res/values/strings.xml --to ru,de
  loxml translate --provider google --model gemini-2.5-flash
  loxml translate --attributes --exclude name,id
  loxml translate --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runTranslate(ctx, cmd, args, a)
		},
	}

	a.providerFlags.register(cmd)
	cmd.Flags().StringVar(&a.from, "from", "", i18n.T("Source language (default from config, else en)"))
	cmd.Flags().StringSliceVar(&a.to, "to", nil, i18n.T("Target languages (comma-separated)"))
	cmd.Flags().BoolVar(&a.attributes, "attributes", false, i18n.T("Also translate attribute values"))
	cmd.Flags().StringSliceVar(&a.exclude, "exclude", nil, i18n.T("Attribute names whose values are not sent for translation (comma-separated)"))
	cmd.Flags().IntVar(&a.chunkSize, "chunk-size", 0, i18n.T("Values per API request (0 = provider default)"))
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 0, i18n.T("Maximum parallel requests"))
	cmd.Flags().IntVar(&a.maxRetries, "max-retries", 3, i18n.T("Maximum retries on transient failures"))
	cmd.Flags().StringVar(&a.prompt, "prompt", "", i18n.T("Custom system prompt for AI providers"))
	cmd.Flags().BoolVar(&a.noCache, "no-cache", false, i18n.T("Do not use the translation memory"))
	cmd.Flags().BoolVar(&a.force, "force", false, i18n.T("Translate files even if they are up to date"))
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, i18n.T("Translate but do not write any file"))

	return cmd
}

func runTranslate(ctx context.Context, cmd *cobra.Command, args []string, a translateArgs) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		if files, err = cfg.ResolveFiles(); err != nil {
			return err
		}
	}
	if len(files) == 0 {
		return errors.New(i18n.T("no files to translate: pass files or list them in .loxml.yaml"))
	}

	from := cfg.SourceLang
	if a.from != "" {
		from = a.from
	}
	if err := config.ValidateLanguage(from); err != nil {
		return err
	}

	to := a.to
	if len(to) == 0 {
		to = cfg.TargetLanguages(files)
	}
	to = normalizeLanguages(to, from)
	for _, lang := range to {
		if err := config.ValidateLanguage(lang); err != nil {
			return err
		}
	}
	if len(to) == 0 {
		return errors.New(i18n.T("no target languages: use --to or set languages in .loxml.yaml"))
	}

	exclude := cfg.ExcludeAttributes
	if cmd.Flags().Changed("exclude") {
		exclude = a.exclude
	}

	prov := resolveProvider(cfg, a.providerFlags)
	opts := translate.Options{
		ChunkSize:     cmp.Or(a.chunkSize, cfg.ChunkSize),
		MaxConcurrent: cmp.Or(a.maxConcurrent, cfg.MaxConcurrent),
		MaxRetries:    a.maxRetries,
		SystemPrompt:  cmp.Or(a.prompt, cfg.Prompt),
	}
	tr, closeCache, err := newTranslator(prov, opts, !a.noCache && cfg.CacheEnabled())
	if err != nil {
		return err
	}
	defer closeCache()

	lock, err := lockfile.Load(rootDir)
	if err != nil {
		return err
	}
	if len(args) == 0 && !a.dryRun {
		lock.Clean(files)
	}
	if len(args) > 0 && !a.dryRun {
		var pruned int
		if files, pruned = pruneMissing(lock, files); pruned > 0 {
			if err := lock.Save(); err != nil {
				return err
			}
		}
		if len(files) == 0 {
			return nil
		}
	}
	log.Debug().Str("lock", lock.Summary()).Msg("Lock file loaded")

	logInfo("%s", i18n.Tf("Translating %d file(s) from %s to %s with %s", len(files), from, strings.Join(to, ", "), prov.ID))

	runner := &pipeline.Runner{
		Translator: tr,
		Writer:     metafile.FileWriter{},
		Lock:       lock,
	}
	report, err := runner.Run(ctx, pipeline.Options{
		Files:             files,
		From:              from,
		To:                to,
		IncludeAttributes: a.attributes || cfg.IncludeAttributes,
		ExcludeAttributes: exclude,
		MaxConcurrent:     opts.MaxConcurrent,
		Force:             a.force,
		DryRun:            a.dryRun,
		OnLog:             func(format string, args ...any) { logInfo(format, args...) },
	})
	if err != nil {
		if errors.Is(err, translate.ErrProviderUnavailable) {
			logWarning("%s", i18n.T("The provider could not be reached; translated files written so far are kept."))
		}
		return err
	}

	if a.dryRun {
		logSuccess("%s", i18n.Tf("Dry run: %d file(s) would be written", len(report.Outputs)))
		return nil
	}
	logSuccess(i18n.N("Translated %d file", "Translated %d files", report.Files), report.Files)
	logInfo("%s", i18n.Tf("Done: %d written, %d up to date", report.Written, report.Skipped))
	return nil
}

// pruneMissing drops the named files that no longer exist but still have
// lock entries, and forgets those entries. Other files are kept, so that a
// mistyped path still fails in the pipeline.
func pruneMissing(lock *lockfile.LockFile, files []string) (kept []string, pruned int) {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) && len(lock.Languages(f)) > 0 {
			lock.RemoveFile(f)
			logWarning("%s", i18n.Tf("%s no longer exists; removed from the lock file", f))
			pruned++
			continue
		}
		kept = append(kept, f)
	}
	return kept, pruned
}

// normalizeLanguages trims, deduplicates and drops the source language.
func normalizeLanguages(langs []string, from string) []string {
	var out []string
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang == "" || lang == from || slices.Contains(out, lang) {
			continue
		}
		out = append(out, lang)
	}
	return out
}

// ---------------------------------------------------------------------------
// parse
// ---------------------------------------------------------------------------

func newParseCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: i18n.T("Print the nodes of a resource file"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := markup.ParseFile(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(nodes)
			}
			printNodes(cmd.OutOrStdout(), nodes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, i18n.T("Print nodes as JSON"))
	return cmd
}

func printNodes(w io.Writer, nodes []markup.Node) {
	for i, n := range nodes {
		fmt.Fprintln(w, formatNode(i, n))
	}
}

func formatNode(i int, n markup.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d  <%s", i, n.Tag)
	for _, a := range n.Attrs {
		fmt.Fprintf(&b, " %s=%q", a.Name, a.Value)
	}
	b.WriteString(">")
	if n.Text != "" {
		fmt.Fprintf(&b, " %q", n.Text)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// languages
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	var f providerFlags

	cmd := &cobra.Command{
		Use:   "languages",
		Short: i18n.T("List the languages a provider can translate to"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			prov := resolveProvider(cfg, f)
			tr, closeCache, err := newTranslator(prov, translate.Options{}, false)
			if err != nil {
				return err
			}
			defer closeCache()

			ctx, cancel := signalContext()
			defer cancel()
			langs, err := tr.Languages(ctx)
			if err != nil {
				return err
			}
			for _, code := range langs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", code, translate.LanguageName(code))
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show configuration and translation state"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			lock, err := lockfile.Load(rootDir)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), cfg, lock)
			return printCacheStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// Output states of a (file, language) pair.
const (
	stateUpToDate = "up to date"
	stateChanged  = "changed"
	stateMissing  = "missing output"
)

// outputState compares the lock entry of file/lang with the file on disk.
func outputState(lock *lockfile.LockFile, file, lang string) string {
	content, err := os.ReadFile(file)
	if err != nil || lock.IsChanged(file, lang, string(content)) {
		return stateChanged
	}
	out, _ := lock.Output(file, lang)
	if _, err := os.Stat(out); err != nil {
		return stateMissing
	}
	return stateUpToDate
}

func printStatus(w io.Writer, cfg *config.File, lock *lockfile.LockFile) {
	fmt.Fprintf(w, "\n%s\n", blue(i18n.T("Configuration")))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  %-14s %s\n", i18n.T("Source:"), cfg.SourceLang)
	if len(cfg.Languages) > 0 {
		fmt.Fprintf(w, "  %-14s %s\n", i18n.T("Languages:"), strings.Join(cfg.Languages, ", "))
	} else {
		fmt.Fprintf(w, "  %-14s %s\n", i18n.T("Languages:"), i18n.T("detected"))
	}
	fmt.Fprintf(w, "  %-14s %s\n", i18n.T("Provider:"), cfg.Provider.ID)
	if len(cfg.Files) > 0 {
		fmt.Fprintf(w, "  %-14s %s\n", i18n.T("Files:"), strings.Join(cfg.Files, ", "))
	}

	files, outputs := lock.Stats()
	fmt.Fprintf(w, "\n%s\n", blue(i18n.T("Translated files")))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	if files == 0 {
		fmt.Fprintf(w, "  %s\n\n", i18n.T("Nothing translated yet"))
		return
	}
	fmt.Fprintf(w, "  %s\n", i18n.Tf("%d source file(s), %d output(s)", files, outputs))
	for _, file := range lock.SourceFiles() {
		fmt.Fprintf(w, "\n  %s\n", file)
		for _, lang := range lock.Languages(file) {
			state := outputState(lock, file, lang)
			label := i18n.T(state)
			switch state {
			case stateUpToDate:
				label = green(label)
			case stateMissing:
				label = red(label)
			default:
				label = yellow(label)
			}
			fmt.Fprintf(w, "    %-10s %s\n", lang, label)
		}
	}
	fmt.Fprintln(w)
}

// printCacheStatus reports the size of the translation memory, if any.
func printCacheStatus(ctx context.Context, w io.Writer) error {
	path, err := settings.CacheFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Len(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", blue(i18n.T("Translation memory")))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  %s\n", i18n.Tf("%d translation(s) in %s", n, path))
	fmt.Fprintln(w)
	return nil
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage provider credentials"),
		Long: i18n.T(`Manage API keys and endpoint settings of translation providers.

Examples:
  loxml auth login --provider microsoft --region westeurope
  loxml auth login --provider custom-openai --base-url http://localhost:8080/v1
  loxml auth logout --provider groq
  loxml auth list`),
	}
	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var provider, key, baseURL, region string

	cmd := &cobra.Command{
		Use:   "login",
		Short: i18n.T("Store credentials for a provider"),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, ok := translate.DefaultProviders()[provider]
			if !ok {
				return fmt.Errorf("%s", i18n.Tf("unknown provider %q (valid: %s)", provider, strings.Join(translate.ProviderIDs(), ", ")))
			}

			info := settings.Get(provider)
			if info == nil {
				info = &settings.Info{}
			}
			if baseURL != "" {
				info.BaseURL = baseURL
			}
			if region != "" {
				info.Region = region
			}

			if key == "" && provider != translate.ProviderOllama {
				var err error
				if key, err = promptKey(cmd.InOrStdin(), def.Name, info.Key); err != nil {
					return err
				}
			}
			if key != "" {
				info.Key = key
			}

			if err := settings.Set(provider, info); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}
			logSuccess("%s", i18n.Tf("%s credentials saved to %s", def.Name, settings.FilePath()))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", i18n.T("Provider to configure"))
	cmd.Flags().StringVar(&key, "key", "", i18n.T("API key (prompted when omitted)"))
	cmd.Flags().StringVar(&baseURL, "base-url", "", i18n.T("Custom API base URL"))
	cmd.Flags().StringVar(&region, "region", "", i18n.T("Azure resource region (microsoft)"))
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	return cmd
}

// promptKey reads an API key from r. An empty answer keeps existing.
func promptKey(r io.Reader, name, existing string) (string, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n", blue(i18n.Tf("%s API key", name)))
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  %s %s\n", i18n.T("Current key:"), yellow(settings.MaskKey(existing)))
		fmt.Fprintf(os.Stderr, "  %s", i18n.T("Enter new key to replace, or press Enter to keep: "))
	} else {
		fmt.Fprintf(os.Stderr, "  %s", i18n.T("Enter API key: "))
	}

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New(i18n.T("no input received"))
	}
	key := strings.TrimSpace(scanner.Text())
	if key == "" {
		if existing == "" {
			return "", errors.New(i18n.T("no API key provided"))
		}
		return existing, nil
	}
	return key, nil
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: i18n.T("Remove stored credentials"),
		Long:  i18n.T("Remove stored credentials of one provider, or of all providers when --provider is not given."),
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("All stored credentials removed"))
				return nil
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess("%s", i18n.Tf("%s credentials removed", provider))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", i18n.T("Provider to log out (default: all)"))
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   i18n.T("Show stored credentials"),
		Run: func(cmd *cobra.Command, args []string) {
			printCredentials(cmd.OutOrStdout())
		},
	}
}

func printCredentials(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", blue(i18n.T("Stored Credentials")))
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, id := range translate.ProviderIDs() {
		info := settings.Get(id)
		switch {
		case info != nil && info.Key != "":
			fmt.Fprintf(w, "  %-14s %s (%s)\n", id, green(i18n.T("configured")), settings.MaskKey(info.Key))
		case info != nil && info.BaseURL != "":
			fmt.Fprintf(w, "  %-14s %s\n", id, green(i18n.T("configured")))
		default:
			fmt.Fprintf(w, "  %-14s %s\n", id, red(i18n.T("not configured")))
		}
		if info != nil && info.BaseURL != "" {
			fmt.Fprintf(w, "  %14s %s %s\n", "", i18n.T("endpoint:"), info.BaseURL)
		}
		if info != nil && info.Region != "" {
			fmt.Fprintf(w, "  %14s %s %s\n", "", i18n.T("region:"), info.Region)
		}
	}

	fmt.Fprintf(w, "\n  %s\n", yellow(i18n.T("Environment Variables")))
	envs := []string{settings.EnvAPIKey}
	for _, id := range translate.ProviderIDs() {
		if env := settings.EnvVarForProvider(id); env != "" {
			envs = append(envs, env)
		}
	}
	for _, env := range envs {
		if v := os.Getenv(env); v != "" {
			fmt.Fprintf(w, "  %-26s %s\n", env, green(settings.MaskKey(v)))
		} else {
			fmt.Fprintf(w, "  %-26s %s\n", env, red(i18n.T("not set")))
		}
	}
	fmt.Fprintln(w)
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Print version information"),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "loxml %s (commit %s, built %s)\n", version, commit, date)
			if langs := i18n.Available(); len(langs) > 0 {
				fmt.Fprintf(w, "%s %s\n", i18n.T("Message catalogs:"), strings.Join(langs, ", "))
			}
		},
	}
}
