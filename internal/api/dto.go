package api

import (
	"time"

	"github.com/veloroute/veloroute_core/internal/domain"
	"github.com/veloroute/veloroute_core/internal/usecase"
)

// CoordinateDTO is the wire form of a coordinate. Elevation and
// cumulative distance are omitted when not attached.
type CoordinateDTO struct {
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	Elevation         *int     `json:"elevation,omitempty"`
	DistanceFromStart *float64 `json:"distance_from_start,omitempty"`
}

// SegmentDTO exposes only the interpolated points; ids, endpoints and
// drawing modes stay internal.
type SegmentDTO struct {
	Points []CoordinateDTO `json:"points"`
}

type ElevationGainDTO struct {
	Ascent  int `json:"ascent"`
	Descent int `json:"descent"`
}

type RouteInfoDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerID       string    `json:"owner_id"`
	OpCursor      int       `json:"op_cursor"`
	Ascent        int       `json:"ascent"`
	Descent       int       `json:"descent"`
	TotalDistance float64   `json:"total_distance"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RouteDetailDTO struct {
	RouteInfoDTO
	Waypoints     []CoordinateDTO  `json:"waypoints"`
	Segments      []SegmentDTO     `json:"segments"`
	ElevationGain ElevationGainDTO `json:"elevation_gain"`
	TotalDistance float64          `json:"total_distance"`
}

type RouteOpResultDTO struct {
	Waypoints     []CoordinateDTO  `json:"waypoints"`
	Segments      []SegmentDTO     `json:"segments"`
	ElevationGain ElevationGainDTO `json:"elevation_gain"`
	TotalDistance float64          `json:"total_distance"`
}

func toCoordinateDTO(c domain.Coordinate) CoordinateDTO {
	dto := CoordinateDTO{
		Latitude:  float64(c.Latitude),
		Longitude: float64(c.Longitude),
	}
	if c.Elevation != nil {
		elevation := int(*c.Elevation)
		dto.Elevation = &elevation
	}
	if c.DistanceFromStart != nil {
		distance := float64(*c.DistanceFromStart)
		dto.DistanceFromStart = &distance
	}
	return dto
}

func toCoordinateDTOs(coords []domain.Coordinate) []CoordinateDTO {
	dtos := make([]CoordinateDTO, len(coords))
	for i, c := range coords {
		dtos[i] = toCoordinateDTO(c)
	}
	return dtos
}

func toSegmentDTOs(segments []*domain.Segment) []SegmentDTO {
	dtos := make([]SegmentDTO, len(segments))
	for i, seg := range segments {
		dtos[i] = SegmentDTO{Points: toCoordinateDTOs(seg.Points)}
	}
	return dtos
}

func toGainDTO(gain domain.ElevationGain) ElevationGainDTO {
	return ElevationGainDTO{Ascent: int(gain.Ascent), Descent: int(gain.Descent)}
}

func toInfoDTO(info *domain.RouteInfo) RouteInfoDTO {
	return RouteInfoDTO{
		ID:            info.ID,
		Name:          info.Name,
		OwnerID:       info.OwnerID,
		OpCursor:      info.OpCursor,
		Ascent:        int(info.Ascent),
		Descent:       int(info.Descent),
		TotalDistance: float64(info.TotalDistance),
		IsPublic:      info.IsPublic,
		CreatedAt:     info.CreatedAt,
		UpdatedAt:     info.UpdatedAt,
	}
}

func toInfoDTOs(infos []*domain.RouteInfo) []RouteInfoDTO {
	dtos := make([]RouteInfoDTO, len(infos))
	for i, info := range infos {
		dtos[i] = toInfoDTO(info)
	}
	return dtos
}

func toDetailDTO(detail *usecase.RouteDetail) RouteDetailDTO {
	return RouteDetailDTO{
		RouteInfoDTO:  toInfoDTO(detail.Info),
		Waypoints:     toCoordinateDTOs(detail.Waypoints),
		Segments:      toSegmentDTOs(detail.Segments),
		ElevationGain: toGainDTO(detail.Gain),
		TotalDistance: float64(detail.TotalDistance),
	}
}

func toOpResultDTO(result *usecase.RouteOpResult) RouteOpResultDTO {
	return RouteOpResultDTO{
		Waypoints:     toCoordinateDTOs(result.Waypoints),
		Segments:      toSegmentDTOs(result.Segments),
		ElevationGain: toGainDTO(result.Gain),
		TotalDistance: float64(result.TotalDistance),
	}
}
