package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/PolarWolf314/keysmith/internal/audit"
	"github.com/PolarWolf314/keysmith/internal/configs"
	"github.com/PolarWolf314/keysmith/internal/engine"
	"github.com/PolarWolf314/keysmith/internal/keys"
	"github.com/PolarWolf314/keysmith/internal/keystore"
	"github.com/PolarWolf314/keysmith/internal/notify"
	"github.com/PolarWolf314/keysmith/internal/operation"
	"github.com/PolarWolf314/keysmith/internal/passcache"
	"github.com/PolarWolf314/keysmith/internal/progress"
	"github.com/PolarWolf314/keysmith/internal/ui"
	"github.com/PolarWolf314/keysmith/internal/utils"
	"github.com/PolarWolf314/keysmith/internal/workflows"
	"github.com/briandowns/spinner"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	err := s.Color("cyan")
	if err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		// Restore log output first.
		if !verbose && !debug {
			log.SetOutput(os.Stdout)
		}

		// Ensure final message ends with a newline.
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		// Stop the spinner first to clear the spinner line.
		if !verbose && !debug {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// progressDisplay returns a progress.Tracker display that shows the
// percentage in the spinner suffix.
func progressDisplay(s *spinner.Spinner, message string) func(percent int, cancellable bool) {
	return func(percent int, cancellable bool) {
		suffix := fmt.Sprintf(" %s %d%%", message, percent)
		if percent >= 100 {
			suffix = fmt.Sprintf(" %s done", message)
		} else if !cancellable {
			suffix += " (finishing, cannot cancel)"
		}
		s.Lock()
		s.Suffix = suffix
		s.Unlock()
		Logger.Debugf("Progress: %d%% (cancellable=%t)", percent, cancellable)
	}
}

// cancelOnInterrupt cancels token on SIGINT until the returned stop is called.
func cancelOnInterrupt(token *operation.CancelToken) func() {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, os.Interrupt)

	go func() {
		select {
		case <-sigs:
			Logger.Warnf("Interrupted, cancelling...")
			token.Cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// openStore opens the configured key store.
func openStore() (keystore.KeyStore, error) {
	config := configs.GlobalConfig
	if config == nil {
		config = configs.DefaultConfig()
	}
	Logger.Debugf("Opening %s store at %s", config.Store.Backend, config.StorePath())
	return keystore.Open(config)
}

// newEditDeps wires the edit pipeline to the configured collaborators.
// The returned done blocks until sync notifications are delivered and
// then purges the passphrase cache.
func newEditDeps(store keystore.KeyStore) (workflows.EditKeyDeps, func(), error) {
	config := configs.GlobalConfig
	if config == nil {
		config = configs.DefaultConfig()
	}

	recorder := audit.NewRecorder(configs.UserSettings.AuditLogPath())
	user := utils.Actor()
	notifier := notify.NewAsync(Logger, notify.AuditNotifier{Recorder: recorder, User: user})

	deps := workflows.EditKeyDeps{
		Engine:       engine.New(config.KDFParams()),
		Store:        store,
		Notifier:     notifier,
		Audit:        recorder,
		User:         user,
		Installation: config.InstallationID,
		Log:          Logger,
	}

	ttl, err := config.CacheTTL()
	if err != nil {
		return deps, notifier.Wait, err
	}
	if ttl <= 0 {
		Logger.Debugf("Passphrase cache disabled")
		return deps, notifier.Wait, nil
	}

	cache, err := passcache.NewMemoryCache(ttl)
	if err != nil {
		return deps, notifier.Wait, err
	}
	deps.Cache = cache
	Logger.Debugf("Caching new passphrases for %s", cache.TTL())

	done := func() {
		notifier.Wait()
		if n := cache.Sweep(); n > 0 {
			Logger.Debugf("Dropped %d expired passphrases", n)
		}
		Logger.Debugf("Purging %d cached passphrases", len(cache.Entries()))
		cache.Purge()
	}
	return deps, done, nil
}

// ttyPrompter asks for secrets on the terminal, pausing the spinner meanwhile.
type ttyPrompter struct {
	spinner *spinner.Spinner
}

func (p ttyPrompter) Passphrase(reason operation.PendingReason, label string) ([]byte, error) {
	if p.spinner != nil && p.spinner.Active() {
		p.spinner.Stop()
		defer p.spinner.Start()
	}

	prompt := fmt.Sprintf("Passphrase for %s: ", label)
	if reason.SubKey != reason.Key {
		prompt = fmt.Sprintf("Passphrase for subkey %s of %s: ", reason.SubKey, label)
	}
	return readSecret(prompt)
}

func (p ttyPrompter) TokenSignature(reason operation.PendingReason) ([]byte, error) {
	return nil, fmt.Errorf("no hardware token available to sign for subkey %s", reason.SubKey)
}

// readSecret reads a hidden secret from stdin when it is a terminal, or
// from the controlling terminal when stdin is redirected.
func readSecret(prompt string) ([]byte, error) {
	if utils.IsTerminal() {
		return utils.ReadPassphrase(prompt)
	}
	return utils.ReadPassphraseFromTTY(prompt)
}

// readNewPassphrase asks for a new passphrase twice and checks they match.
func readNewPassphrase() ([]byte, error) {
	first, err := readSecret("New passphrase: ")
	if err != nil {
		return nil, err
	}
	second, err := readSecret("Repeat passphrase: ")
	if err != nil {
		utils.ZeroBytes(first)
		return nil, err
	}
	defer utils.ZeroBytes(second)
	if string(first) != string(second) {
		utils.ZeroBytes(first)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

// runEdit runs the interactive edit pipeline with the spinner showing
// progress and SIGINT cancelling it.
func runEdit(ctx context.Context, s *spinner.Spinner, message string, changes *keys.ChangeSet, label string) (operation.Result[keys.EditOutcome], error) {
	store, err := openStore()
	if err != nil {
		return operation.Result[keys.EditOutcome]{}, err
	}
	defer store.Close()

	deps, done, err := newEditDeps(store)
	if err != nil {
		return operation.Result[keys.EditOutcome]{}, err
	}
	defer done()

	token := operation.NewCancelToken()
	stop := cancelOnInterrupt(token)
	defer stop()

	tracker := progress.NewTracker(progressDisplay(s, message))
	res := workflows.RunEditKeyInteractive(ctx, deps, changes, workflows.InteractiveOptions{
		Prompter: ttyPrompter{spinner: s},
		Label:    label,
	}, tracker, token)
	Logger.Debugf("Edit finished with status %s at %d%% (last run %v)", res.Status(), tracker.Last(), tracker.Values())
	return res, nil
}

// formatEditResult renders the outcome of an edit for the spinner's final message.
func formatEditResult(res operation.Result[keys.EditOutcome], success string) string {
	report := ui.RenderLog(res.Log(), debug)

	switch res.Status() {
	case operation.StatusSuccess:
		if verbose || debug {
			return report + ui.Success.Sprint("✓") + " " + success
		}
		return ui.Success.Sprint("✓") + " " + success
	case operation.StatusCancelled:
		return report + ui.Warning.Sprint("⚠") + " Operation cancelled, no changes were saved"
	case operation.StatusPending:
		reason, _ := res.Reason()
		return report + ui.Warning.Sprint("⚠") + " Stopped waiting for input: " + reason.String()
	default:
		return report + ui.Error.Sprint("✗") + " " + res.Err().Error()
	}
}
