package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	coachx "github.com/tanpawarit/habit-elevate/agent/agents/coach"
	responderx "github.com/tanpawarit/habit-elevate/agent/agents/responder"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	llmx "github.com/tanpawarit/habit-elevate/agent/llm"
	promptx "github.com/tanpawarit/habit-elevate/agent/prompt"
	statex "github.com/tanpawarit/habit-elevate/agent/state"
	toolx "github.com/tanpawarit/habit-elevate/agent/tool"
	"github.com/tanpawarit/habit-elevate/api"
	configx "github.com/tanpawarit/habit-elevate/pkg/config"
	databasex "github.com/tanpawarit/habit-elevate/pkg/database"
	_ "github.com/tanpawarit/habit-elevate/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/habit-elevate/pkg/openrouter"
	vapix "github.com/tanpawarit/habit-elevate/pkg/vapi"
	schedulerx "github.com/tanpawarit/habit-elevate/scheduler"
	storex "github.com/tanpawarit/habit-elevate/store"
	voicex "github.com/tanpawarit/habit-elevate/voice"
)

type memoryBackend interface {
	contractx.ConversationStore
	contractx.CallLog
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("habit-elevate stopped")
	}
}

func run(ctx context.Context) error {
	httpCfg := configx.MustNew[api.Config]("HTTP")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	dbCfg := configx.MustNew[databasex.Config]("DATABASE")
	redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	vapiCfg := configx.MustNew[vapix.Config]("VAPI")
	chatCfg := configx.MustNew[responderx.Config]("CHAT")
	schedCfg := configx.MustNew[schedulerx.Config]("SCHEDULER")

	db, err := databasex.Open(ctx, *dbCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("close database failed")
		}
	}()

	todos := storex.NewTodoStore(db)
	owners := storex.NewOwnerDirectory(db)

	var memory memoryBackend
	if redisCfg.Enabled() {
		memory, err = statex.NewUpstashRedisStore(*redisCfg, statex.WithMaxTurns(redisCfg.MaxTurns))
		if err != nil {
			return err
		}
	} else {
		log.Warn().Msg("upstash redis not configured, conversation history is kept in memory")
		memory = statex.NewMemoryStore(redisCfg.MaxTurns)
	}

	vapiClient, err := vapix.NewClient(*vapiCfg)
	if err != nil {
		return err
	}
	calls, err := voicex.NewCallDispatcher(vapiClient, memory)
	if err != nil {
		return err
	}
	webhook, err := voicex.NewWebhookDispatcher(todos, owners, voicex.WithCountryCode(httpCfg.DefaultCountryCode))
	if err != nil {
		return err
	}

	prompts := promptx.LoadPromptSet()
	coachModelCfg := llmCfg.OpenRouterFor(contractx.AgentTypeCoach)
	chatModel, err := coachModelCfg.New(ctx)
	if err != nil {
		return err
	}
	factory, err := coachx.NewFactory(chatModel, prompts.Coach, toolx.Deps{
		Todos:      todos,
		Calls:      calls,
		CallReader: calls,
		CallLog:    memory,
	},
		coachx.WithHistory(memory),
		coachx.WithMaxToolRounds(llmCfg.MaxToolRounds),
	)
	if err != nil {
		return err
	}

	chat, err := responderx.New(factory, *chatCfg)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Todos:   todos,
		Owners:  owners,
		Chat:    chat,
		Webhook: webhook,
		Calls:   calls,
	}

	plannerCfg := llmCfg.OpenRouterFor(contractx.AgentTypePlanner)
	if client := openrouterx.NewClient(plannerCfg); client != nil {
		planner, err := coachx.NewPlanner(&client.Chat.Completions, plannerCfg.Model, plannerCfg.Temperature, llmCfg.MaxCompletionToken, prompts.Planner)
		if err != nil {
			return err
		}
		deps.Planner = planner
	}

	scheduler := schedulerx.New(*schedCfg)
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("scheduler stop timed out")
		}
	}()
	deps.Scheduler = scheduler

	server, err := api.NewServer(*httpCfg, deps)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
