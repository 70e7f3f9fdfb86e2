// Package redis provides Redis persistence for workflow documents.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "flowplan"

// Persistence stores each workflow document as a JSON string under
// "<prefix>:workflow:<id>" and keeps the ids in the "<prefix>:workflows" set.
type Persistence struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// NewPersistence connects to the Redis server at url (redis://...).
func NewPersistence(ctx context.Context, logger *slog.Logger, url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewPersistenceFromClient(client, defaultPrefix, logger), nil
}

// NewPersistenceFromClient wraps an existing client; keys are namespaced by prefix.
func NewPersistenceFromClient(client *goredis.Client, prefix string, logger *slog.Logger) *Persistence {
	return &Persistence{
		client: client,
		prefix: prefix,
		logger: logger.With("module", "redis_persistence"),
	}
}

func (p *Persistence) workflowKey(id string) string {
	return p.prefix + ":workflow:" + id
}

func (p *Persistence) indexKey() string {
	return p.prefix + ":workflows"
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDocument, error) {
	ids, err := p.client.SMembers(ctx, p.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow ids: %w", err)
	}

	if len(ids) == 0 {
		return []*models.WorkflowDocument{}, nil
	}

	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = p.workflowKey(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	workflows := make([]*models.WorkflowDocument, 0, len(values))

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Workflow listed in index but missing", "workflow_id", ids[i])

			continue
		}

		workflow, err := decode(ids[i], raw)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDocument) error {
	if err := persistence.ValidateWorkflowID("SaveWorkflow", workflow.ID); err != nil {
		return err
	}

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, p.workflowKey(workflow.ID), data, 0)
		pipe.SAdd(ctx, p.indexKey(), workflow.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	raw, err := p.client.Get(ctx, p.workflowKey(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	return decode(id, raw)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	var deleted *goredis.IntCmd

	_, err := p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, p.workflowKey(id))
		pipe.SRem(ctx, p.indexKey(), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func decode(id, raw string) (*models.WorkflowDocument, error) {
	var workflow models.WorkflowDocument
	if err := json.Unmarshal([]byte(raw), &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}
