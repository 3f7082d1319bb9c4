package app

import (
	"context"
	"errors"
	"fmt"

	"planup/internal/config"
	"planup/internal/domain"
	"planup/internal/engine"
	"planup/internal/repo"
)

// ResolveProject picks the active project for a command or server boot:
// the override first (id or key), then the workspace config, then the
// single project in the database. A project named by the config that
// does not exist yet is created on the fly so a fresh workspace with a
// planup.yml works without a separate init step.
func ResolveProject(ctx context.Context, eng engine.Engine, cfg *config.Config, projectOverride, actorID string) (domain.Project, error) {
	if projectOverride != "" {
		p, err := eng.ProjectByRef(ctx, projectOverride)
		if err != nil {
			return domain.Project{}, fmt.Errorf("project %q: %w", projectOverride, err)
		}
		return p, nil
	}
	if cfg != nil && cfg.Project.Key != "" {
		p, err := eng.Repo.GetProjectByKey(ctx, cfg.Project.Key)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, err
		}
		return eng.InitProject(ctx, engine.ProjectCreateOptions{
			Key:     cfg.Project.Key,
			Name:    cfg.Project.Key,
			ActorID: actorID,
		})
	}
	p, err := eng.Repo.SingleProject(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, fmt.Errorf("no project found; run pu project init or add planup.yml")
		}
		return domain.Project{}, err
	}
	return p, nil
}
