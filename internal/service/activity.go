package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/edulog/edulog-go-api/internal/dto"
	"github.com/edulog/edulog-go-api/internal/models"
	"github.com/edulog/edulog-go-api/internal/repository"
)

// ActivityActor represents the authenticated actor performing a mutation.
type ActivityActor struct {
	ID   string
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID    string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder defines behaviour for recording audit entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes methods to query and persist the audit trail.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, query dto.ActivityListQuery) ([]dto.ActivityResponse, dto.PaginationMeta, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the audit trail service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    strings.TrimSpace(entry.ActorID),
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, query dto.ActivityListQuery) ([]dto.ActivityResponse, dto.PaginationMeta, error) {
	filter := repository.ActivityLogFilter{
		Page:       query.Page,
		PageSize:   query.PageSize,
		ActorID:    strings.TrimSpace(query.ActorID),
		Action:     strings.TrimSpace(query.Action),
		EntityType: strings.TrimSpace(query.EntityType),
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(query.Page, 1),
		PageSize:   query.PageSize,
		TotalItems: total,
	}
	if query.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(query.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return responses, pagination, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
