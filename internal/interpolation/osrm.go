package interpolation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	polyline "github.com/twpayne/go-polyline"

	"github.com/veloroute/veloroute_core/internal/domain"
)

const (
	defaultRoot = "http://localhost:5000"
	profile     = "bike"
)

// OSRMClient interpolates segments through an OSRM routing backend.
type OSRMClient struct {
	root   string
	client *http.Client
}

// NewOSRMClient builds a client against the given OSRM root URL.
func NewOSRMClient(root string) *OSRMClient {
	return &OSRMClient{
		root:   strings.TrimRight(root, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewOSRMClientFromEnv reads the OSRM root from OSRM_ROOT.
func NewOSRMClientFromEnv() *OSRMClient {
	root := os.Getenv("OSRM_ROOT")
	if root == "" {
		root = defaultRoot
	}
	return NewOSRMClient(root)
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

type osrmNearestResponse struct {
	Code      string `json:"code"`
	Waypoints []struct {
		Location []float64 `json:"location"`
	} `json:"waypoints"`
}

// CorrectCoordinate snaps a follow-road coordinate onto the nearest
// point of the road network. Freehand coordinates pass through as-is.
func (c *OSRMClient) CorrectCoordinate(ctx context.Context, coord domain.Coordinate, mode domain.DrawingMode) (domain.Coordinate, error) {
	if mode == domain.DrawingModeFreehand {
		return coord, nil
	}

	url := fmt.Sprintf("%s/nearest/v1/%s/%f,%f",
		c.root, profile, float64(coord.Longitude), float64(coord.Latitude))

	var resp osrmNearestResponse
	if err := c.get(ctx, url, &resp); err != nil {
		return domain.Coordinate{}, err
	}
	if resp.Code != "Ok" || len(resp.Waypoints) == 0 {
		return domain.Coordinate{}, domain.Errorf(domain.KindExternal, "routing backend could not snap coordinate: %s", resp.Code)
	}
	loc := resp.Waypoints[0].Location
	if len(loc) != 2 {
		return domain.Coordinate{}, domain.NewExternalError("routing backend returned a malformed location")
	}
	return domain.NewCoordinate(loc[1], loc[0])
}

// Interpolate fills an empty segment's points with the road path from
// Start to Goal. Freehand and zero-length segments become the straight
// line between the endpoints.
func (c *OSRMClient) Interpolate(ctx context.Context, seg *domain.Segment) error {
	if seg.Mode == domain.DrawingModeFreehand || seg.Start.SamePosition(seg.Goal) {
		return seg.SetPoints([]domain.Coordinate{seg.Start, seg.Goal})
	}

	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=polyline",
		c.root, profile,
		float64(seg.Start.Longitude), float64(seg.Start.Latitude),
		float64(seg.Goal.Longitude), float64(seg.Goal.Latitude))

	var resp osrmRouteResponse
	if err := c.get(ctx, url, &resp); err != nil {
		return err
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		return domain.Errorf(domain.KindExternal, "routing backend could not route segment: %s", resp.Code)
	}

	points, err := decodeGeometry(resp.Routes[0].Geometry)
	if err != nil {
		return err
	}
	if len(points) < 2 {
		points = []domain.Coordinate{seg.Start, seg.Goal}
	}
	// The backend snaps endpoints to its own graph; pin them back so the
	// path is guaranteed to run from Start to Goal.
	points[0] = seg.Start
	points[len(points)-1] = seg.Goal
	return seg.SetPoints(points)
}

func (c *OSRMClient) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.WrapError(domain.KindExternal, "failed to build routing request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.WrapError(domain.KindExternal, "routing backend unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WrapError(domain.KindExternal, "failed to read routing response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Errorf(domain.KindExternal, "routing backend returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.WrapError(domain.KindExternal, "failed to decode routing response", err)
	}
	return nil
}

// decodeGeometry decodes OSRM's precision-5 geometry, which stores each
// point as lat,lon.
func decodeGeometry(geometry string) ([]domain.Coordinate, error) {
	pairs, rest, err := polyline.DecodeCoords([]byte(geometry))
	if err != nil {
		return nil, domain.WrapError(domain.KindExternal, "malformed route geometry", err)
	}
	if len(rest) != 0 {
		return nil, domain.NewExternalError("trailing bytes after route geometry")
	}
	coords := make([]domain.Coordinate, len(pairs))
	for i, p := range pairs {
		c, err := domain.NewCoordinate(p[0], p[1])
		if err != nil {
			return nil, domain.WrapError(domain.KindExternal, "route geometry out of range", err)
		}
		coords[i] = c
	}
	return coords, nil
}
