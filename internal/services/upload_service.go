package services

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/artgrid/backend/internal/config"
)

// UploadService issues short-lived signed upload credentials for the
// storage provider. The binary upload happens directly from the client to
// the provider; the API server never touches the file.
type UploadService struct {
	cfg *config.Config
}

func NewUploadService(cfg *config.Config) *UploadService {
	return &UploadService{cfg: cfg}
}

// UploadCredential is handed to the client to authorize one direct upload.
type UploadCredential struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
}

// SignUpload computes the provider signature for an upload into the
// configured folder. A zero timestamp is replaced with the current time.
func (s *UploadService) SignUpload(timestamp int64) (*UploadCredential, error) {
	if s.cfg.CloudinaryAPISecret == "" {
		return nil, errors.New("upload signing is not configured")
	}
	if timestamp <= 0 {
		timestamp = time.Now().Unix()
	}

	params := map[string]string{
		"folder":    s.cfg.CloudinaryFolder,
		"timestamp": fmt.Sprintf("%d", timestamp),
	}

	return &UploadCredential{
		Signature: signParams(params, s.cfg.CloudinaryAPISecret),
		Timestamp: timestamp,
		APIKey:    s.cfg.CloudinaryAPIKey,
		CloudName: s.cfg.CloudinaryCloudName,
		Folder:    s.cfg.CloudinaryFolder,
	}, nil
}

// signParams implements the provider's signing scheme: parameters sorted by
// key, serialized as key=value pairs joined with "&", the shared secret
// appended, SHA-1 over the whole string, hex encoded.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	payload := strings.Join(pairs, "&") + secret
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
