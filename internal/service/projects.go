// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
	"github.com/olegiv/evsite-go/internal/webhook"
)

// Project field limits.
const (
	MaxProjectNameLength        = 200
	MaxProjectDescriptionLength = 2000
)

// ProjectInput holds the editable project fields. An empty Slug is derived
// from Name.
type ProjectInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// ProjectService manages projects and their members.
type ProjectService struct {
	base
	queries *store.Queries
	events  *EventService
	uploads *imaging.Processor
}

// NewProjectService creates a project service. uploads may be nil; it is
// used to move or remove a project's files when its slug changes or it is deleted.
func NewProjectService(d Deps, events *EventService, uploads *imaging.Processor) *ProjectService {
	return &ProjectService{
		base:    newBase(d),
		queries: store.New(d.DB),
		events:  events,
		uploads: uploads,
	}
}

func (in *ProjectInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Slug = strings.TrimSpace(strings.ToLower(in.Slug))
	if in.Slug == "" {
		in.Slug = util.Slugify(in.Name)
	}
}

func (in ProjectInput) validate() error {
	v := model.NewValidationError()
	switch {
	case in.Name == "":
		v.Add("name", "is required")
	case utf8.RuneCountInString(in.Name) > MaxProjectNameLength:
		v.Add("name", fmt.Sprintf("must be at most %d characters", MaxProjectNameLength))
	}
	switch {
	case !util.IsValidSlug(in.Slug):
		v.Add("slug", "must contain only lowercase letters, digits and single hyphens")
	case util.IsReservedSlug(in.Slug):
		v.Add("slug", "is reserved")
	}
	if utf8.RuneCountInString(in.Description) > MaxProjectDescriptionLength {
		v.Add("description", fmt.Sprintf("must be at most %d characters", MaxProjectDescriptionLength))
	}
	return v.OrNil()
}

// Create creates a project owned by the creator.
func (s *ProjectService) Create(ctx context.Context, actor *model.Identity, in ProjectInput) (store.Project, error) {
	if !actor.CanCreateProjects() {
		return store.Project{}, ErrForbidden
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return store.Project{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	var project store.Project
	err := store.InTx(ctx, s.DB, func(q *store.Queries) error {
		n, err := q.ProjectSlugExists(ctx, in.Slug)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSlugTaken
		}
		now := s.now()
		project, err = q.CreateProject(ctx, store.CreateProjectParams{
			Name:        in.Name,
			Slug:        in.Slug,
			Description: in.Description,
			IsActive:    active,
			OwnerID:     actor.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			if store.IsUniqueViolation(err, "projects.slug") {
				return ErrSlugTaken
			}
			return fmt.Errorf("creating project: %w", err)
		}
		_, err = q.AddProjectMember(ctx, store.AddProjectMemberParams{
			ProjectID: project.ID,
			UserID:    actor.UserID,
			Role:      model.ProjectRoleOwner,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return store.Project{}, err
	}

	s.Logger.Info("project created", "project_id", project.ID, "slug", project.Slug, "user_id", actor.UserID)
	if s.events != nil {
		_ = s.events.LogProjectEvent(ctx, model.EventCategoryProject, "Project created: "+project.Name, actor.UserID, project.ID, nil)
	}
	s.publish(ctx, realtime.TableProjects, project.ID, "", "create")
	return project, nil
}

// Get returns a project by id.
func (s *ProjectService) Get(ctx context.Context, id int64) (store.Project, error) {
	p, err := s.queries.GetProject(ctx, id)
	return p, notFound(err)
}

// GetBySlug returns a project by slug, through the cache when configured.
func (s *ProjectService) GetBySlug(ctx context.Context, slug string) (store.Project, error) {
	load := func(ctx context.Context) (store.Project, error) {
		p, err := s.queries.GetProjectBySlug(ctx, slug)
		return p, notFound(err)
	}
	if s.Cache == nil {
		return load(ctx)
	}
	return s.Cache.Projects.GetOrLoad(ctx, slug, load)
}

// GetActiveBySlug is GetBySlug for public pages: inactive projects are not found.
func (s *ProjectService) GetActiveBySlug(ctx context.Context, slug string) (store.Project, error) {
	p, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return p, err
	}
	if !p.IsActive {
		return store.Project{}, ErrNotFound
	}
	return p, nil
}

// ListForUser returns the projects visible to the user. Users whose app role
// grants project access see every project; others see their memberships.
func (s *ProjectService) ListForUser(ctx context.Context, actor *model.Identity, limit, offset int) ([]store.Project, int64, error) {
	l, o := clampPage(limit, offset)
	if actor.ImplicitProjectLevel() > 0 {
		items, err := s.queries.ListProjects(ctx, store.ListProjectsParams{Limit: l, Offset: o})
		if err != nil {
			return nil, 0, fmt.Errorf("listing projects: %w", err)
		}
		total, err := s.queries.CountProjects(ctx)
		return items, total, err
	}
	items, err := s.queries.ListProjectsForUser(ctx, store.ListProjectsForUserParams{UserID: actor.UserID, Limit: l, Offset: o})
	if err != nil {
		return nil, 0, fmt.Errorf("listing projects: %w", err)
	}
	total, err := s.queries.CountProjectsForUser(ctx, actor.UserID)
	return items, total, err
}

// Update changes the editable fields. A changed slug moves the project's uploads.
func (s *ProjectService) Update(ctx context.Context, actor *model.Identity, id int64, in ProjectInput) (store.Project, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return store.Project{}, err
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return store.Project{}, err
	}
	active := old.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}

	var project store.Project
	err = store.InTx(ctx, s.DB, func(q *store.Queries) error {
		n, err := q.ProjectSlugExistsExcluding(ctx, store.ProjectSlugExistsExcludingParams{Slug: in.Slug, ID: id})
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrSlugTaken
		}
		project, err = q.UpdateProject(ctx, store.UpdateProjectParams{
			Name:        in.Name,
			Slug:        in.Slug,
			Description: in.Description,
			IsActive:    active,
			UpdatedAt:   s.now(),
			ID:          id,
		})
		return slugConflict(notFound(err))
	})
	if err != nil {
		return store.Project{}, err
	}

	if old.Slug != project.Slug && s.uploads != nil {
		if err := s.uploads.MoveDir(old.Slug, project.Slug); err != nil {
			s.Logger.Error("failed to move project uploads",
				"category", model.EventCategoryMedia, "project_id", id, "from", old.Slug, "to", project.Slug, "error", err)
		}
	}
	if s.Cache != nil {
		s.Cache.InvalidateProject(ctx, id, old.Slug, project.Slug)
	}
	if s.events != nil {
		_ = s.events.LogProjectEvent(ctx, model.EventCategoryProject, "Project updated: "+project.Name, actor.UserID, id, nil)
	}
	s.publish(ctx, realtime.TableProjects, id, "", "update")
	s.dispatch(ctx, model.EventProjectUpdated, id, webhook.ProjectEventData{
		ID:       project.ID,
		Name:     project.Name,
		Slug:     project.Slug,
		IsActive: project.IsActive,
	})
	return project, nil
}

// Delete removes a project with everything that belongs to it.
func (s *ProjectService) Delete(ctx context.Context, actor *model.Identity, id int64) error {
	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if s.uploads != nil {
		if err := s.uploads.DeleteAll(project.Slug); err != nil {
			s.Logger.Error("failed to remove project uploads", "category", model.EventCategoryMedia, "project_id", id, "error", err)
		}
	}
	if s.Cache != nil {
		s.Cache.InvalidateProject(ctx, id, project.Slug)
	}
	s.Logger.Info("project deleted", "project_id", id, "slug", project.Slug, "user_id", actor.UserID)
	if s.events != nil {
		_ = s.events.LogInfo(ctx, model.EventCategoryProject, "Project deleted: "+project.Name, actor.UserID, "",
			map[string]any{"project_id": id, "slug": project.Slug})
	}
	s.publish(ctx, realtime.TableProjects, id, "", "delete")
	return nil
}

// Access returns the effective role level of actor on a project: the higher
// of the membership role and the level implied by app roles. 0 means no access.
func (s *ProjectService) Access(ctx context.Context, actor *model.Identity, projectID int64) (int, error) {
	if actor == nil {
		return 0, nil
	}
	level := actor.ImplicitProjectLevel()
	m, err := s.queries.GetProjectMember(ctx, store.GetProjectMemberParams{ProjectID: projectID, UserID: actor.UserID})
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return level, nil
		}
		return 0, fmt.Errorf("loading membership: %w", err)
	}
	return max(level, model.ProjectRoleLevel(m.Role)), nil
}

// Members lists the members of a project.
func (s *ProjectService) Members(ctx context.Context, projectID int64) ([]store.ListProjectMembersRow, error) {
	return s.queries.ListProjectMembers(ctx, projectID)
}

// AddMember adds the user with the given email. Nobody can grant a role above
// their own level.
func (s *ProjectService) AddMember(ctx context.Context, actorLevel int, projectID int64, email, role string) (store.ProjectMember, error) {
	if err := checkGrant(actorLevel, role); err != nil {
		return store.ProjectMember{}, err
	}
	user, err := s.queries.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			v := model.NewValidationError()
			v.Add("email", "no user with this email")
			return store.ProjectMember{}, v
		}
		return store.ProjectMember{}, err
	}

	_, err = s.queries.GetProjectMember(ctx, store.GetProjectMemberParams{ProjectID: projectID, UserID: user.ID})
	if err == nil {
		return store.ProjectMember{}, ErrAlreadyMember
	}
	if !errors.Is(notFound(err), ErrNotFound) {
		return store.ProjectMember{}, err
	}

	now := s.now()
	m, err := s.queries.AddProjectMember(ctx, store.AddProjectMemberParams{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return store.ProjectMember{}, fmt.Errorf("adding member: %w", err)
	}
	s.Logger.Info("project member added", "project_id", projectID, "user_id", user.ID, "role", role)
	s.publish(ctx, realtime.TableProjects, projectID, "", "members")
	return m, nil
}

// UpdateMemberRole changes a member's role, keeping at least one owner.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, actorLevel int, projectID, userID int64, role string) error {
	if err := checkGrant(actorLevel, role); err != nil {
		return err
	}
	err := store.InTx(ctx, s.DB, func(q *store.Queries) error {
		m, err := q.GetProjectMember(ctx, store.GetProjectMemberParams{ProjectID: projectID, UserID: userID})
		if err != nil {
			return notFound(err)
		}
		if model.ProjectRoleLevel(m.Role) > actorLevel {
			return ErrForbidden
		}
		if m.Role == model.ProjectRoleOwner && role != model.ProjectRoleOwner {
			if err := ensureAnotherOwner(ctx, q, projectID); err != nil {
				return err
			}
		}
		return q.UpdateProjectMemberRole(ctx, store.UpdateProjectMemberRoleParams{
			Role:      role,
			UpdatedAt: s.now(),
			ProjectID: projectID,
			UserID:    userID,
		})
	})
	if err != nil {
		return err
	}
	s.publish(ctx, realtime.TableProjects, projectID, "", "members")
	return nil
}

// RemoveMember removes a member, keeping at least one owner.
func (s *ProjectService) RemoveMember(ctx context.Context, actorLevel int, projectID, userID int64) error {
	err := store.InTx(ctx, s.DB, func(q *store.Queries) error {
		m, err := q.GetProjectMember(ctx, store.GetProjectMemberParams{ProjectID: projectID, UserID: userID})
		if err != nil {
			return notFound(err)
		}
		if model.ProjectRoleLevel(m.Role) > actorLevel {
			return ErrForbidden
		}
		if m.Role == model.ProjectRoleOwner {
			if err := ensureAnotherOwner(ctx, q, projectID); err != nil {
				return err
			}
		}
		return q.DeleteProjectMember(ctx, store.DeleteProjectMemberParams{ProjectID: projectID, UserID: userID})
	})
	if err != nil {
		return err
	}
	s.Logger.Info("project member removed", "project_id", projectID, "user_id", userID)
	s.publish(ctx, realtime.TableProjects, projectID, "", "members")
	return nil
}

func checkGrant(actorLevel int, role string) error {
	if !model.IsValidProjectRole(role) {
		v := model.NewValidationError()
		v.Add("role", "must be one of owner, admin, editor, viewer")
		return v
	}
	if model.ProjectRoleLevel(role) > actorLevel {
		return ErrForbidden
	}
	return nil
}

func ensureAnotherOwner(ctx context.Context, q *store.Queries, projectID int64) error {
	owners, err := q.CountProjectOwners(ctx, projectID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}
