package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/lucasnoah/forgebot/internal/analytics"
	"github.com/lucasnoah/forgebot/internal/checks"
	"github.com/lucasnoah/forgebot/internal/codehost"
	"github.com/lucasnoah/forgebot/internal/config"
	appctx "github.com/lucasnoah/forgebot/internal/context"
	"github.com/lucasnoah/forgebot/internal/db"
	"github.com/lucasnoah/forgebot/internal/handlers"
	"github.com/lucasnoah/forgebot/internal/llm"
	"github.com/lucasnoah/forgebot/internal/logging"
	"github.com/lucasnoah/forgebot/internal/orchestrator"
	"github.com/lucasnoah/forgebot/internal/patch"
	"github.com/lucasnoah/forgebot/internal/search"
	"github.com/lucasnoah/forgebot/internal/workflow"
	"github.com/lucasnoah/forgebot/internal/worktree"
)

// loadConfig resolves the run configuration from the --config flag if set,
// otherwise from the standard search locations.
func loadConfig(path string) (*config.RunConfig, error) {
	var cfg *config.RunConfig
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		msg := "invalid configuration:"
		for _, e := range errs {
			msg += "\n  " + e.Error()
		}
		return nil, errors.New(msg)
	}
	return cfg, nil
}

// built bundles the live collaborators assembled for a run, plus the
// teardown needed to release them.
type built struct {
	orch    *orchestrator.Orchestrator
	eventDB *db.DB
}

func (b *built) Close() {
	if b.eventDB != nil {
		b.eventDB.Close()
	}
}

// buildOrchestrator wires the code-host, LLM, search, patch, check, and
// worktree collaborators described by cfg into an Orchestrator for runID,
// and subscribes the analytics event logger to its state machine. When
// fresh is true a new worktree and branch are created for runID;
// otherwise the worktree from a prior Run is reused at its deterministic
// path and branch name.
func buildOrchestrator(cfg *config.RunConfig, runID string, fresh bool) (*built, error) {
	repoDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine repo directory: %w", err)
	}

	wtMgr := worktree.NewManager(&worktree.ExecGit{}, repoDir, repoDir+"/worktrees")

	var root, branch string
	if fresh {
		wt, err := wtMgr.Create(worktree.CreateOpts{RunID: runID})
		if err != nil {
			return nil, fmt.Errorf("create worktree: %w", err)
		}
		logging.Info("worktree created", "runId", runID, "path", wt.Path, "branch", wt.Branch)
		root, branch = wt.Path, wt.Branch
	} else {
		root, branch = wtMgr.Path(runID), fmt.Sprintf("forgebot/%s", runID)
	}

	checkRunner := checks.NewRunner(&checks.ExecRunner{})

	deps := handlers.Deps{
		CodeHost: codehost.NewClient(cfg.GitHubToken),
		LLM:      llm.NewClient(cfg.AnthropicKey, cfg.Model),
		Search:   search.NewRunner(),
		Patch:    patch.NewEngine(),
		Checks:   checks.NewAdapter(checkRunner, cfg),
		Diff:     appctx.NewBuilder(&appctx.ExecGit{}),
		Root:     root,
		Branch:   branch,
	}

	coordinator := workflow.NewCoordinator()
	handlers.Register(coordinator, deps)

	eventDB := openEventDB()

	orch := orchestrator.New(coordinator, orchestrator.Options{
		RunID:       runID,
		StoreRoot:   cfg.StoreRoot,
		Logger:      logging.StdLogger{},
		MaxAttempts: cfg.MaxAttempts,
	})

	if eventDB != nil {
		logger := analytics.NewEventLogger(eventDB)
		orch.Machine().Subscribe(logger.Subscriber())
	}

	return &built{orch: orch, eventDB: eventDB}, nil
}

// openEventDB opens the analytics SQLite store at its default path,
// migrating it to the current schema. A failure here degrades to nil
// (no analytics) rather than blocking the run — the authoritative record
// lives in the workflow.Store, not here.
func openEventDB() *db.DB {
	path, err := db.DefaultDBPath()
	if err != nil {
		logging.Warn("analytics disabled: could not resolve db path", "err", err)
		return nil
	}
	d, err := db.Open(path)
	if err != nil {
		logging.Warn("analytics disabled: could not open db", "err", err)
		return nil
	}
	if err := d.Migrate(); err != nil {
		logging.Warn("analytics disabled: migration failed", "err", err)
		d.Close()
		return nil
	}
	return d
}
