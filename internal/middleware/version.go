package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const (
	HeaderAcceptVersion = "Accept-Version"
	HeaderAPIVersion    = "X-API-Version"

	CurrentAPIVersion = "1.0"
)

// VersionConfig represents version middleware configuration
type VersionConfig struct {
	Current   string
	Supported []string
}

func DefaultVersionConfig() VersionConfig {
	return VersionConfig{
		Current:   CurrentAPIVersion,
		Supported: []string{CurrentAPIVersion},
	}
}

// Version stamps every response with the API version and rejects requests
// asking for one the server does not speak. A missing Accept-Version means
// the current version.
func Version(config VersionConfig) gin.HandlerFunc {
	supported := make(map[string]struct{}, len(config.Supported))
	for _, v := range config.Supported {
		supported[v] = struct{}{}
	}

	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, config.Current)

		if requested := c.GetHeader(HeaderAcceptVersion); requested != "" {
			if _, ok := supported[requested]; !ok {
				handler.Fail(c, apperrors.BadRequest(fmt.Sprintf("API version %s not supported", requested), nil))
				return
			}
		}
		c.Next()
	}
}
