package app

import (
	"context"
	"errors"
	"fmt"

	"autoboard/internal/config"
	"autoboard/internal/engine"
	"autoboard/internal/repo"
)

// ResolveProjectAndConfig picks the active project and loads the workspace
// config. It prefers the override, then the config file's project id, then
// the single project in the DB. A missing project row is created on the fly
// so a fresh workspace works without a separate init step.
func ResolveProjectAndConfig(ctx context.Context, workspace, projectOverride string, e engine.Engine) (string, *config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return "", nil, err
	}

	projectID := projectOverride
	if projectID == "" && cfg != nil {
		projectID = cfg.Project.ID
	}
	if projectID == "" {
		p, err := e.Repo.SingleProject(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("project not specified; use --project or set project.id in %s", config.Path(workspace))
		}
		projectID = p.ID
	}
	if cfg == nil {
		cfg = config.Default(projectID)
	}
	cfg.Project.ID = projectID

	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		e.Config = cfg
		name := cfg.Project.Name
		if name == "" {
			name = projectID
		}
		if _, err := e.InitProject(ctx, projectID, name); err != nil {
			return "", nil, fmt.Errorf("create project %s: %w", projectID, err)
		}
	}
	return projectID, cfg, nil
}
