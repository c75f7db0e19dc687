package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ValidatorConfig holds validation configuration
type ValidatorConfig struct {
	CommandBlacklist  []string // Dangerous command patterns
	MaxCommandLength  int      // Maximum build command length
	MaxLocationLength int      // Maximum artifact location length
}

// DefaultValidatorConfig returns safe defaults
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		CommandBlacklist:  []string{"rm -rf /", ":(){ :|:& };:", "mkfs", "dd if="},
		MaxCommandLength:  4096,
		MaxLocationLength: 4096,
	}
}

// Validator checks request values before they reach a handler. Build
// commands run verbatim in a shell, so the HTTP surface is the one place
// they are screened.
type Validator struct {
	config           ValidatorConfig
	dangerousPattern *regexp.Regexp
}

// NewValidator creates a new validator with the given config
func NewValidator(config ValidatorConfig) *Validator {
	v := &Validator{config: config}
	if len(config.CommandBlacklist) > 0 {
		patterns := make([]string, len(config.CommandBlacklist))
		for i, p := range config.CommandBlacklist {
			patterns[i] = regexp.QuoteMeta(p)
		}
		v.dangerousPattern = regexp.MustCompile(strings.Join(patterns, "|"))
	}
	return v
}

// ValidateCommand checks if a build command is safe to execute
func (v *Validator) ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return &ValidationError{Field: "command", Message: "command is required"}
	}
	if len(command) > v.config.MaxCommandLength {
		return &ValidationError{Field: "command", Message: "command exceeds maximum length"}
	}
	if v.dangerousPattern != nil && v.dangerousPattern.MatchString(command) {
		return &ValidationError{Field: "command", Message: "command contains potentially dangerous patterns"}
	}
	return nil
}

// ValidateLocation checks an artifact location parameter
func (v *Validator) ValidateLocation(location string) error {
	if location == "" {
		return &ValidationError{Field: "location", Message: "location is required"}
	}
	if len(location) > v.config.MaxLocationLength {
		return &ValidationError{Field: "location", Message: "location exceeds maximum length"}
	}
	if strings.ContainsRune(location, 0) {
		return &ValidationError{Field: "location", Message: "location contains a NUL byte"}
	}
	return nil
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// BodySizeLimitMiddleware limits request body size
func BodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}

// RequestIDMiddleware propagates X-Request-ID, minting one when absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}
