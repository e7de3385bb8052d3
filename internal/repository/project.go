package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/model"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	defer logger.DeferLogDuration("project.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, name, description, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Description, p.CreatedBy, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.Create: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	defer logger.DeferLogDuration("project.GetByID", time.Now())()
	p := &model.Project{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(description,''), created_by, created_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("projectRepo.GetByID: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	defer logger.DeferLogDuration("project.Exists", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("projectRepo.Exists: %w", err)
	}
	return exists, nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, m *model.ProjectMember) error {
	defer logger.DeferLogDuration("project.AddMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		m.ProjectID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.AddMember: %w", err)
	}
	return nil
}

func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	defer logger.DeferLogDuration("project.RemoveMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.RemoveMember: %w", err)
	}
	return nil
}

func (r *ProjectRepository) UpdateMemberRole(ctx context.Context, projectID, userID string, role model.MemberRole) error {
	defer logger.DeferLogDuration("project.UpdateMemberRole", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE project_members SET role = $1 WHERE project_id = $2 AND user_id = $3`,
		role, projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("projectRepo.UpdateMemberRole: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	defer logger.DeferLogDuration("project.IsMember", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`,
		projectID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("projectRepo.IsMember: %w", err)
	}
	return exists, nil
}

func (r *ProjectRepository) GetMemberRole(ctx context.Context, projectID, userID string) (model.MemberRole, error) {
	defer logger.DeferLogDuration("project.GetMemberRole", time.Now())()
	var role model.MemberRole
	err := r.pool.QueryRow(ctx,
		`SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("projectRepo.GetMemberRole: %w", err)
	}
	return role, nil
}

func (r *ProjectRepository) GetMemberIDs(ctx context.Context, projectID string) ([]string, error) {
	defer logger.DeferLogDuration("project.GetMemberIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM project_members WHERE project_id = $1`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.GetMemberIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("projectRepo.GetMemberIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projectRepo.GetMemberIDs rows: %w", err)
	}
	return ids, nil
}

func (r *ProjectRepository) GetUserProjects(ctx context.Context, userID string) ([]model.Project, error) {
	defer logger.DeferLogDuration("project.GetUserProjects", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, COALESCE(p.description,''), p.created_by, p.created_at
		 FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = $1
		 ORDER BY p.created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("projectRepo.GetUserProjects query: %w", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0, 16)
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("projectRepo.GetUserProjects scan: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("projectRepo.GetUserProjects rows: %w", err)
	}
	return projects, nil
}
