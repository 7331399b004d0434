// Package cli is the interactive terminal front end of the quiz.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/apperror"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/session"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stemsi/exstem-quiz/internal/view"
)

// ErrQuit ends Run.
var ErrQuit = errors.New("quit")

// SetupConfig is the batch configuration typed on the setup screen.
type SetupConfig struct {
	NumQuestions int `json:"num_questions" binding:"required,min=1,max=100"`
}

// App routes terminal input to store actions and redraws on every change.
// Calls to the quiz service run in the background; their outcome reaches
// the screen through the store or the status line.
type App struct {
	store  *session.Store
	router view.Router
	con    Console
	tick   time.Duration
	log    zerolog.Logger

	report      *view.ReportForm
	reportStage int

	mu     sync.Mutex
	status string

	wg     sync.WaitGroup
	redraw chan struct{}
}

// NewApp wires a console to a store.
func NewApp(store *session.Store, con Console, tick time.Duration, plain bool, log zerolog.Logger) *App {
	if tick <= 0 {
		tick = time.Second
	}
	return &App{
		store:  store,
		router: view.Router{Plain: plain},
		con:    con,
		tick:   tick,
		log:    log.With().Str("component", "cli").Logger(),
		redraw: make(chan struct{}, 1),
	}
}

func (a *App) setStatus(msg string) {
	a.mu.Lock()
	a.status = msg
	a.mu.Unlock()
}

func (a *App) statusText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// async runs a call that waits on the quiz service without holding up
// input. Its failure is already recorded in the store's error slot.
func (a *App) async(ctx context.Context, name string, fn func(context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Debug().Err(err).Str("command", name).Msg("Command failed")
		}
		select {
		case a.redraw <- struct{}{}:
		default:
		}
	}()
}

// wait blocks until background calls have returned.
func (a *App) wait() {
	a.wg.Wait()
}

// Run draws the current screen and processes input until ctx ends, the
// input closes or the user quits.
func (a *App) Run(ctx context.Context) error {
	defer a.wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, unsubscribe := a.store.Subscribe()
	defer unsubscribe()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := a.con.ReadLine()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	a.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			if err := a.Handle(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				a.log.Debug().Err(err).Msg("Command failed")
			}
			a.draw()
		case <-changes:
			a.draw()
		case <-a.redraw:
			a.draw()
		case <-ticker.C:
			st := a.store.Snapshot()
			if st.View == model.ViewTest && st.TimerEnabled && st.IsTimerRunning {
				a.draw()
			}
		}
	}
}

func (a *App) draw() {
	st := a.store.Snapshot()
	if err := a.router.Draw(a.con, &st, a.store.Now()); err != nil {
		a.log.Warn().Err(err).Msg("Draw failed")
		return
	}
	if a.report != nil {
		fmt.Fprint(a.con, "\n"+a.report.Render(view.PaletteFor(st.Theme)))
		if a.reportStage == 0 {
			fmt.Fprintln(a.con, "Pick a type, or [x] to cancel.")
		} else {
			fmt.Fprintln(a.con, "Describe the problem (optional), then press enter.")
		}
	}
	if status := a.statusText(); status != "" {
		fmt.Fprintln(a.con, "\n"+status)
	}
}

// Handle applies one line of input to the current screen.
func (a *App) Handle(ctx context.Context, line string) error {
	a.setStatus("")
	if a.report != nil {
		return a.handleReport(ctx, line)
	}

	st := a.store.Snapshot()
	cmd := strings.TrimSpace(line)
	if st.Error != nil && cmd != "" {
		_ = a.store.ClearError()
	}

	switch st.View {
	case model.ViewHome:
		return a.handleHome(ctx, cmd)
	case model.ViewSetup:
		return a.handleSetup(ctx, &st, cmd)
	case model.ViewTest:
		return a.handleTest(ctx, &st, line)
	case model.ViewResults:
		return a.handleResults(ctx, cmd)
	case model.ViewReview:
		return a.handleReview(&st, cmd)
	}
	return nil
}

func (a *App) handleHome(ctx context.Context, cmd string) error {
	switch cmd {
	case "s":
		if err := a.store.GoToSetup(); err != nil {
			return err
		}
		a.async(ctx, "fetch_tests", a.store.FetchAvailableTests)
	case "t":
		return a.store.ToggleTheme(ctx)
	case "q":
		return ErrQuit
	}
	return nil
}

func (a *App) handleSetup(ctx context.Context, st *session.State, cmd string) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "s":
		a.async(ctx, "start_test", a.store.StartTest)
		return nil
	case "h":
		return a.store.ResetTest()
	case "t":
		return a.store.ToggleTheme(ctx)
	case "r":
		a.async(ctx, "fetch_tests", a.store.FetchAvailableTests)
		return nil
	case "c":
		return a.store.SetConfig(st.NumQuestionsConfig, !st.TimerEnabled)
	case "m":
		return a.store.SetQuestionMode(nextMode(st.QuestionMode))
	case "n":
		if len(fields) < 2 {
			return nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			a.setStatus("Number of questions must be a number.")
			return err
		}
		if errs := validator.Struct(SetupConfig{NumQuestions: n}); errs != nil {
			a.setStatus(errs["num_questions"])
			return apperror.Validation(apperror.CodeInvalidConfig)
		}
		return a.store.SetConfig(n, st.TimerEnabled)
	}

	for _, f := range fields {
		i, err := strconv.Atoi(f)
		if err != nil || i < 1 || i > len(st.AvailableTests) {
			continue
		}
		if err := a.store.ToggleCategory(st.AvailableTests[i-1].TestID); err != nil {
			return err
		}
	}
	return nil
}

func nextMode(m model.QuestionMode) model.QuestionMode {
	switch m {
	case model.QuestionModeClosed:
		return model.QuestionModeOpen
	case model.QuestionModeOpen:
		return model.QuestionModeMixed
	}
	return model.QuestionModeClosed
}

func (a *App) handleTest(ctx context.Context, st *session.State, line string) error {
	q, ok := st.CurrentQuestion()
	if !ok || st.IsLoading {
		return nil
	}
	cmd := strings.TrimSpace(line)

	if st.Answered[q.ID] && !st.IsChecking(q.ID) {
		switch cmd {
		case "":
			return a.store.NextQuestion()
		case "r":
			a.openReport(q.ID, st)
		}
		return nil
	}

	if q.IsOpen() {
		if st.IsChecking(q.ID) || cmd == "" {
			if cmd == "" {
				return a.store.NextQuestion()
			}
			return nil
		}
		a.async(ctx, "check_open_answer", func(ctx context.Context) error {
			_, err := a.store.CheckOpenAnswer(ctx, cmd)
			return err
		})
		return nil
	}

	if cmd == "" {
		return a.store.ConfirmAnswer()
	}

	ans := st.UserAnswers[q.ID].Clone()
	for _, f := range strings.Fields(cmd) {
		i, err := strconv.Atoi(f)
		if err != nil || i < 1 || i > len(q.Options) {
			continue
		}
		idx := i - 1
		switch {
		case q.Type == model.QuestionTypeSingleChoice:
			ans.Selected = []int{idx}
		case ans.Has(idx):
			ans.Selected = remove(ans.Selected, idx)
		default:
			ans.Selected = append(ans.Selected, idx)
		}
	}
	return a.store.SubmitAnswer(q.ID, ans)
}

func remove(in []int, v int) []int {
	out := in[:0]
	for _, x := range in {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (a *App) handleResults(ctx context.Context, cmd string) error {
	switch cmd {
	case "v":
		return a.store.ReviewAnswers()
	case "s":
		if err := a.store.GoToSetup(); err != nil {
			return err
		}
		a.async(ctx, "fetch_tests", a.store.FetchAvailableTests)
	case "h":
		return a.store.ResetTest()
	case "t":
		return a.store.ToggleTheme(ctx)
	}
	return nil
}

func (a *App) handleReview(st *session.State, cmd string) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "b":
		return a.store.BackToResults()
	case "r":
		if len(fields) < 2 {
			return nil
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(st.CurrentQuestions) {
			a.setStatus("No such question.")
			return nil
		}
		a.openReport(st.CurrentQuestions[n-1].ID, st)
	}
	return nil
}

func (a *App) openReport(id model.QuestionID, st *session.State) {
	res, ok := st.OpenQuestionResults[id]
	a.report = view.NewReportForm(id, ok && res.Graded())
	a.reportStage = 0
}

func (a *App) handleReport(ctx context.Context, line string) error {
	cmd := strings.TrimSpace(line)
	if cmd == "x" {
		a.report = nil
		return nil
	}

	if a.reportStage == 0 {
		n, err := strconv.Atoi(cmd)
		if err != nil || !a.report.Choose(n) {
			a.setStatus("Pick one of the listed types.")
			return nil
		}
		a.reportStage = 1
		return nil
	}

	a.report.Description = cmd
	if errs := a.report.Validate(); errs != nil {
		for _, msg := range errs {
			a.setStatus(msg)
			break
		}
		return apperror.Validation(apperror.CodeInvalidReport)
	}

	form := a.report
	a.report = nil
	a.setStatus("Sending report...")
	a.async(ctx, "report_issue", func(ctx context.Context) error {
		if err := a.store.ReportIssue(ctx, form.QuestionID, form.IssueType, form.Description); err != nil {
			a.setStatus("Report failed: " + apperror.From(err).Message)
			return err
		}
		a.setStatus("Thanks, the report was sent.")
		return nil
	})
	return nil
}
