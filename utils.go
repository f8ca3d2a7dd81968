package drawsheet

import (
	"log/slog"
	"strings"
	"time"
)

// SanitizeJSONResponse strips the incidental formatting LLMs wrap around
// JSON output: surrounding whitespace, markdown code fences, and any prose
// before the first brace or after the last one.
func SanitizeJSONResponse(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Models sometimes lead with "Here is the data:" before the document.
	if start := strings.IndexByte(s, '{'); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexByte(s, '}'); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return []byte(s)
}

// retryable executes a call with exponential backoff. max is the number of
// retries after the first attempt; 0 means a single attempt.
func retryable(call func() error, max int, backoff time.Duration, log *slog.Logger) error {
	if max <= 0 {
		return call()
	}
	delay := backoff
	for i := 0; ; i++ {
		err := call()
		if err == nil {
			if i > 0 {
				log.Debug("attempt succeeded after retry", "attempt", i+1)
			}
			return nil
		}
		if i == max {
			log.Debug("final attempt failed", "attempt", i+1, "error", err)
			return err
		}
		log.Debug("attempt failed, retrying", "attempt", i+1, "error", err, "delay", delay)
		time.Sleep(delay)
		delay *= 2
	}
}

// estimateTokens provides a rough token estimate from text length, roughly
// four characters per token.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
