package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ESD-II/tracker-website/models"
	"github.com/ESD-II/tracker-website/repositories"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// PointSummary is the list-view shape: enough to pick a point for replay.
type PointSummary struct {
	*models.Point
	DurationSeconds *float64 `json:"duration_seconds"`
}

type PointService interface {
	ListPoints(ctx context.Context, limit, offset int) ([]*PointSummary, error)
	GetReplay(ctx context.Context, id int) (*models.PointReplay, error)
}

type pointService struct {
	pointRepo repositories.PointRepository
}

func NewPointService(pointRepo repositories.PointRepository) PointService {
	return &pointService{pointRepo: pointRepo}
}

// ListPoints returns finalized points, most recent first.
func (s *pointService) ListPoints(ctx context.Context, limit, offset int) ([]*PointSummary, error) {
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 0 || limit > maxListLimit {
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		offset = 0
	}

	points, err := s.pointRepo.ListFinalized(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list points: %w", err)
	}

	summaries := make([]*PointSummary, 0, len(points))
	for _, point := range points {
		summaries = append(summaries, &PointSummary{
			Point:           point,
			DurationSeconds: point.DurationSeconds(),
		})
	}
	return summaries, nil
}

// GetReplay returns a point with its full coordinate trace, ordered by
// relative offset. Point and coordinates are fetched concurrently.
func (s *pointService) GetReplay(ctx context.Context, id int) (*models.PointReplay, error) {
	var (
		point  *models.Point
		coords []*models.Coordinate
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		point, err = s.pointRepo.GetByID(gCtx, id)
		return err
	})
	g.Go(func() error {
		var err error
		coords, err = s.pointRepo.ListCoordinates(gCtx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, repositories.ErrPointNotFound) {
			return nil, ErrPointNotFound
		}
		return nil, fmt.Errorf("failed to load replay for point %d: %w", id, err)
	}

	return &models.PointReplay{
		Point:           *point,
		DurationSeconds: point.DurationSeconds(),
		Coordinates:     coords,
	}, nil
}
