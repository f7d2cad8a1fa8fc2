package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// maxPointsPerRequest caps the size of a single /contains batch.
	maxPointsPerRequest = 1 << 20
	// maxContainsBody caps the bytes read from a /contains body.
	maxContainsBody = 64 << 20
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polymask",
		Subsystem: "index",
		Name:      "points_total",
		Help:      "Points classified through the HTTP service",
	}, []string{"result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "polymask",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"path"})

	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polymask",
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "HTTP requests answered with an error status",
	}, []string{"path"})
)

// ContainsRequest is the body of POST /contains.
type ContainsRequest struct {
	Points [][]float64 `json:"points"`
}

// ContainsResponse lists, for every requested point, the id of the polygon
// containing it or -1.
type ContainsResponse struct {
	Results []int `json:"results"`
	Inside  int   `json:"inside"`
}

// PolygonsResponse is the body returned by GET /polygons.
type PolygonsResponse struct {
	IDs   []int `json:"ids"`
	Count int   `json:"count"`
}

// Server answers containment queries over an index built at start-up. The
// index is never modified, so handlers share it without locking.
type Server struct {
	idx     *SpatialIndex
	regions *RegionIndex
	ref     orb.Point
	maxBody int64
}

// NewServer wraps a built index. ref is the anchor passed to every query.
func NewServer(idx *SpatialIndex, regions *RegionIndex, ref orb.Point) *Server {
	return &Server{idx: idx, regions: regions, ref: ref, maxBody: maxContainsBody}
}

// Handler returns the routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/contains", corsMiddleware(timed("/contains", s.containsHandler)))
	mux.HandleFunc("/polygons", corsMiddleware(timed("/polygons", s.polygonsHandler)))
	mux.HandleFunc("/health", corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func timed(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

// POST /contains - classify a batch of points
func (s *Server) containsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, "/contains", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ContainsRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, "/contains", "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		glog.V(1).Infof("Invalid /contains body: %v", err)
		httpError(w, "/contains", "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Points) > maxPointsPerRequest {
		httpError(w, "/contains", "Too many points", http.StatusRequestEntityTooLarge)
		return
	}

	points := make([]orb.Point, len(req.Points))
	for i, p := range req.Points {
		if len(p) != 2 {
			httpError(w, "/contains", "Point "+strconv.Itoa(i)+" must be [x, y]", http.StatusBadRequest)
			return
		}
		points[i] = orb.Point{p[0], p[1]}
	}

	resp := ContainsResponse{Results: make([]int, len(points))}
	for i, q := range points {
		id, inside := s.idx.Contains(s.ref, q)
		resp.Results[i] = id
		if inside {
			resp.Inside++
		}
	}
	queriesTotal.WithLabelValues("inside").Add(float64(resp.Inside))
	queriesTotal.WithLabelValues("outside").Add(float64(len(req.Points) - resp.Inside))
	glog.V(2).Infof("/contains: %d points, %d inside", len(req.Points), resp.Inside)

	writeJSON(w, resp)
}

// GET /polygons?bbox=xmin,ymin,xmax,ymax - polygons whose bounding box touches the box
func (s *Server) polygonsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, "/polygons", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bound, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		httpError(w, "/polygons", err.Error(), http.StatusBadRequest)
		return
	}

	ids := s.regions.QueryRegion(bound)
	writeJSON(w, PolygonsResponse{IDs: ids, Count: len(ids)})
}

// GET /health - Health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":   "ready",
		"polygons": s.idx.Store().Len(),
		"index":    s.idx.Stats(),
	})
}

// parseBBox reads "xmin,ymin,xmax,ymax"
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errBadBBox
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errBadBBox
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, errBadBBox
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

var errBadBBox = errors.New("bbox must be xmin,ymin,xmax,ymax")

func httpError(w http.ResponseWriter, path, msg string, code int) {
	requestErrors.WithLabelValues(path).Inc()
	http.Error(w, msg, code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("Writing response: %v", err)
	}
}
