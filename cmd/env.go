package main

import (
	"context"
	"os"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prequal-cli/internal/convstore"
	"github.com/sells-group/prequal-cli/internal/engine"
	"github.com/sells-group/prequal-cli/internal/extract"
	"github.com/sells-group/prequal-cli/internal/model"
	"github.com/sells-group/prequal-cli/internal/notify"
	anthropicpkg "github.com/sells-group/prequal-cli/pkg/anthropic"
	notionpkg "github.com/sells-group/prequal-cli/pkg/notion"
	sfpkg "github.com/sells-group/prequal-cli/pkg/salesforce"
)

// env bundles the wired engine for a command's lifetime.
type env struct {
	Registry      *model.SlotRegistry
	Store         engine.Store
	Conversations convstore.Store
	Orchestrator  *engine.Orchestrator
}

func (e *env) Close() {
	if err := e.Conversations.Close(); err != nil {
		zap.L().Warn("close conversation store", zap.Error(err))
	}
}

// initStore opens the configured conversation store and runs migrations.
// Every durable backend is wrapped so a mid-run database failure degrades to
// memory instead of dropping conversations on the floor.
func initStore(ctx context.Context) (convstore.Store, error) {
	var (
		primary convstore.Store
		err     error
	)
	switch cfg.Store.Driver {
	case "postgres":
		primary, err = convstore.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		primary, err = convstore.NewSQLite(cfg.Store.DatabaseURL)
	case "memory":
		return convstore.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	store := convstore.NewFallback(primary)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initEngine wires the full dialogue engine: slot registry, extraction
// passes, conversation store, and downstream decision publishing.
func initEngine(ctx context.Context) (*env, error) {
	reg, err := model.LoadRegistry(cfg.Engine.SlotOverlayPath)
	if err != nil {
		return nil, err
	}

	conversations, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	store := engine.NewStore(reg, cfg.Engine.FilledThreshold)

	// The deterministic pass always runs; the model pass only when a key is
	// configured. The engine stays usable offline, with reduced recall.
	passes := []extract.Extractor{extract.NewDeterministic(reg)}
	var answerer extract.Answerer
	if cfg.Anthropic.Key != "" {
		llm := extract.NewLLM(anthropicpkg.NewClient(cfg.Anthropic.Key), reg, cfg.Anthropic)
		passes = append(passes, llm)
		answerer = llm
	} else {
		zap.L().Warn("anthropic key not set, running deterministic extraction only")
	}

	orch := engine.NewOrchestrator(
		store,
		extract.NewComposite(passes...),
		answerer,
		conversations,
		initNotifier(),
		cfg.Engine,
	)

	return &env{
		Registry:      reg,
		Store:         store,
		Conversations: conversations,
		Orchestrator:  orch,
	}, nil
}

// initNotifier builds the decision publisher from whichever CRM targets are
// configured. Returns nil when neither is, which disables publishing.
func initNotifier() engine.Notifier {
	var sfClient sfpkg.Client
	if cfg.Salesforce.ClientID != "" {
		c, err := initSalesforce()
		if err != nil {
			zap.L().Warn("salesforce disabled", zap.Error(err))
		} else {
			sfClient = c
		}
	}

	var notionClient notionpkg.Client
	if cfg.Notion.Token != "" {
		notionClient = notionpkg.NewClient(cfg.Notion.Token)
	}

	if sfClient == nil && notionClient == nil {
		return nil
	}
	return notify.NewPublisher(sfClient, notionClient, cfg.Notion)
}

func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
