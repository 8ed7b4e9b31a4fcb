package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type groupService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewGroupService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) GroupService {
	return &groupService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *groupService) Create(ctx context.Context, req *models.GroupRequest, caller Caller) (*models.Group, error) {
	if !caller.Role.CanAuthor() {
		return nil, NewPermissionError(caller.UserID, 0, "group", "create", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	group := &models.Group{Name: req.Name, Description: req.Description, CreatedBy: caller.UserID}
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Group().Create(ctx, group); err != nil {
			return err
		}
		return tx.Group().ReplaceMembers(ctx, group.ID, req.MemberIDs)
	})
	if err != nil {
		return nil, mapRepoError(err, ErrGroupNotFound)
	}

	s.logger.Info("Group created", "group_id", group.ID, "members", len(req.MemberIDs))
	return s.repo.Group().GetByID(ctx, group.ID)
}

func (s *groupService) Update(ctx context.Context, id uint, req *models.GroupRequest, caller Caller) (*models.Group, error) {
	existing, err := s.owned(ctx, id, caller, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	existing.Name = req.Name
	existing.Description = req.Description
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Group().Update(ctx, existing); err != nil {
			return err
		}
		if req.MemberIDs == nil {
			return nil
		}
		return tx.Group().ReplaceMembers(ctx, id, req.MemberIDs)
	})
	if err != nil {
		return nil, mapRepoError(err, ErrGroupNotFound)
	}
	return s.repo.Group().GetByID(ctx, id)
}

func (s *groupService) Delete(ctx context.Context, id uint, caller Caller) error {
	if _, err := s.owned(ctx, id, caller, "delete"); err != nil {
		return err
	}
	return mapRepoError(s.repo.Group().Delete(ctx, id), ErrGroupNotFound)
}

func (s *groupService) Get(ctx context.Context, id uint) (*models.Group, error) {
	group, err := s.repo.Group().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrGroupNotFound)
	}
	return group, nil
}

func (s *groupService) List(ctx context.Context, params models.ListParams) ([]*models.Group, int64, error) {
	params.Normalize()
	if errs := s.validator.ValidateListParams(&params); len(errs) > 0 {
		return nil, 0, errs
	}
	return s.repo.Group().List(ctx, params)
}

func (s *groupService) AddMember(ctx context.Context, groupID uint, userID string, caller Caller) error {
	if _, err := s.owned(ctx, groupID, caller, "add member"); err != nil {
		return err
	}
	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		return mapRepoError(err, ErrUserNotFound)
	}
	return mapRepoError(s.repo.Group().AddMember(ctx, groupID, userID), ErrGroupNotFound)
}

func (s *groupService) RemoveMember(ctx context.Context, groupID uint, userID string, caller Caller) error {
	if _, err := s.owned(ctx, groupID, caller, "remove member"); err != nil {
		return err
	}
	return mapRepoError(s.repo.Group().RemoveMember(ctx, groupID, userID), ErrMemberNotFound)
}

func (s *groupService) owned(ctx context.Context, id uint, caller Caller, action string) (*models.Group, error) {
	group, err := s.repo.Group().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrGroupNotFound)
	}
	if !caller.Owns(group.CreatedBy) {
		return nil, NewPermissionError(caller.UserID, id, "group", action, "not the owner")
	}
	return group, nil
}
