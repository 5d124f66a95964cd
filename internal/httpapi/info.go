package httpapi

import (
	"net/http"

	"github.com/erauner12/toolbridge-sync/internal/model"
	"github.com/erauner12/toolbridge-sync/internal/service/syncservice"
	"github.com/erauner12/toolbridge-sync/internal/syncx"
)

// ServerInfo represents the server's capabilities and configuration
type ServerInfo struct {
	APIVersion       string         `json:"apiVersion"`
	ServerTime       string         `json:"serverTime"`
	Capabilities     Capabilities   `json:"capabilities"`
	Limits           SyncLimits     `json:"limits"`
	MinClientVersion string         `json:"minClientVersion"`
	RateLimit        *RateLimitInfo `json:"rateLimit,omitempty"`
	Hints            *SyncHints     `json:"hints,omitempty"`
}

// Capabilities lists the enumerations the server understands
type Capabilities struct {
	ChangeTypes     []string `json:"changeTypes"`
	ConflictTypes   []string `json:"conflictTypes"`
	Resolutions     []string `json:"resolutions"`
	DeviceTypes     []string `json:"deviceTypes"`
	IdempotencyKeys bool     `json:"idempotencyKeys"` // clientChangeId dedupe on push
}

// SyncLimits are the paging and signature bounds
type SyncLimits struct {
	DefaultPageLimit int `json:"defaultPageLimit"`
	MaxPageLimit     int `json:"maxPageLimit"`
	DefaultBlockSize int `json:"defaultBlockSize"`
	MaxBlockSize     int `json:"maxBlockSize"`
}

// RateLimitInfo describes the server's rate limiting policy
type RateLimitInfo struct {
	WindowSeconds int `json:"windowSeconds"` // e.g. 60
	MaxRequests   int `json:"maxRequests"`   // per window
	Burst         int `json:"burst"`         // token bucket size
}

// DefaultRateLimitConfig allows 10 requests per second per user with a burst of 120
var DefaultRateLimitConfig = RateLimitInfo{
	WindowSeconds: 60,
	MaxRequests:   600,
	Burst:         120,
}

// SyncHints provides recommendations for client behavior
type SyncHints struct {
	RecommendedBatch int `json:"recommendedBatch"` // safe push batch size
	BackoffMsOn429   int `json:"backoffMsOn429"`   // default backoff if Retry-After missing
}

func enumNames[T interface{ String() string }](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.String())
	}
	return out
}

// Info handles GET /v1/sync/info
// Returns server capabilities, API version, and supported features
// This endpoint can be called without authentication to allow capability discovery
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	conflictTypes := make([]string, 0)
	for t := model.ConflictEdit; t.Valid(); t++ {
		conflictTypes = append(conflictTypes, t.String())
	}
	deviceTypes := make([]string, 0)
	for _, d := range model.AllDeviceTypes() {
		deviceTypes = append(deviceTypes, string(d))
	}

	info := ServerInfo{
		APIVersion: "2.0",
		ServerTime: syncx.RFC3339(syncx.NowMs()),
		Capabilities: Capabilities{
			ChangeTypes:     enumNames(model.AllChangeTypes()),
			ConflictTypes:   conflictTypes,
			Resolutions:     enumNames(model.AllResolutions()),
			DeviceTypes:     deviceTypes,
			IdempotencyKeys: true,
		},
		Limits: SyncLimits{
			DefaultPageLimit: model.DefaultPageLimit,
			MaxPageLimit:     syncservice.MaxPageLimit,
			DefaultBlockSize: model.DefaultBlockSize,
			MaxBlockSize:     syncservice.MaxBlockSize,
		},
		MinClientVersion: "0.2.0",
		RateLimit:        &s.RateLimitConfig,
		Hints: &SyncHints{
			RecommendedBatch: 500,
			BackoffMsOn429:   1500,
		},
	}

	writeJSON(w, http.StatusOK, info)
}
