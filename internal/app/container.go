package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/campaign-console/internal/config"
	"github.com/acme/campaign-console/internal/infra/db"
	"github.com/acme/campaign-console/internal/infra/redis"
	"github.com/acme/campaign-console/internal/queue"
	"github.com/acme/campaign-console/internal/repository"
	pgrepo "github.com/acme/campaign-console/internal/repository/postgres"
	"github.com/acme/campaign-console/internal/repository/redisrepo"
	scyllarepo "github.com/acme/campaign-console/internal/repository/scylla"
	"github.com/acme/campaign-console/internal/service/ingest"
	"github.com/acme/campaign-console/internal/service/launch"
	"github.com/acme/campaign-console/internal/service/quota"
	"github.com/acme/campaign-console/internal/service/wizard"
	"github.com/acme/campaign-console/internal/trigger"
	"github.com/acme/campaign-console/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
	}
}

type repositories struct {
	ContactLists repository.ContactListRepository
	Contacts     repository.ContactRepository
	Campaigns    repository.CampaignRepository
	Agents       repository.AgentRepository
	Usage        repository.UsageRepository
	Drafts       repository.DraftRepository
	LaunchAudit  repository.LaunchAuditStore
}

type services struct {
	Ingest  *ingest.Service
	Quota   *quota.Tracker
	Launch  *launch.Orchestrator
	Wizard  *wizard.Service
	Trigger trigger.Client
}

type publishers struct {
	LaunchEvents *queue.LaunchPublisher
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			ContactLists: pgrepo.NewContactListRepository(c.Postgres.DB()),
			Contacts:     pgrepo.NewContactRepository(c.Postgres.DB()),
			Campaigns:    pgrepo.NewCampaignRepository(c.Postgres.DB()),
			Agents:       pgrepo.NewAgentRepository(c.Postgres.DB()),
			Usage:        pgrepo.NewUsageRepository(c.Postgres.DB(), c.Config.Quota.DefaultAllowance),
			Drafts:       redisrepo.NewDraftRepository(c.Redis.Inner(), c.Config.Draft.Namespace, c.Config.Draft.TTL),
			LaunchAudit:  scyllarepo.NewLaunchAuditStore(c.Scylla.Session()),
		}

		pubs := &publishers{
			LaunchEvents: queue.NewLaunchPublisher(c.Kafka, c.Config.Kafka.LaunchTopic),
		}

		triggerClient := trigger.NewHTTPClient(c.Config.Trigger)

		svcs := &services{
			Ingest:  ingest.NewService(c.Config.Ingestion),
			Quota:   quota.NewTracker(repos.Usage),
			Trigger: triggerClient,
		}

		svcs.Launch = launch.NewOrchestrator(
			repos.ContactLists,
			repos.Contacts,
			repos.Campaigns,
			repos.Agents,
			triggerClient,
			c.Logger,
			c.Config.Launch.ChunkSize,
			launch.ParsePolicy(c.Config.Launch.TriggerPolicy),
			launch.Options{Events: pubs.LaunchEvents, Audit: repos.LaunchAudit},
		)

		svcs.Wizard = wizard.NewService(repos.Drafts, svcs.Quota, svcs.Launch, c.Logger)

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.services = svcs
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.LaunchTopic}, 12, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.publishers != nil && c.components.publishers.LaunchEvents != nil {
		if err := c.components.publishers.LaunchEvents.Close(); err != nil {
			errs = append(errs, fmt.Errorf("launch publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
