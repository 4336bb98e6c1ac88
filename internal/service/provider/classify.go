package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// builtinBodyRules classify the response conventions shared by most activation
// vendors, applied after the mapping's own rules so a mapping can always
// override them.
var builtinBodyRules = []struct {
	marker string
	kind   vendor.ErrorKind
}{
	{"NO_NUMBERS", vendor.KindNoStock},
	{"NO_NUMBER", vendor.KindNoStock},
	{"NO_STOCK", vendor.KindNoStock},
	{"NO_BALANCE", vendor.KindNoBalance},
	{"NOT_ENOUGH", vendor.KindNoBalance},
	{"INSUFFICIENT", vendor.KindNoBalance},
	{"BAD_KEY", vendor.KindBadCredentials},
	{"BAD_API_KEY", vendor.KindBadCredentials},
	{"INVALID_API_KEY", vendor.KindBadCredentials},
	{"WRONG_API_KEY", vendor.KindBadCredentials},
	{"BANNED", vendor.KindBadCredentials},
}

var (
	regexCacheMu sync.RWMutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compiledRule(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.RLock()
	re, ok := regexCache[pattern]
	regexCacheMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCacheMu.Lock()
	regexCache[pattern] = re
	regexCacheMu.Unlock()
	return re, nil
}

// classifyTransport maps a round-trip failure onto the taxonomy. Timeouts and
// context deadlines are TIMEOUT; everything else at the transport layer is a
// retryable SERVER_ERROR.
func classifyTransport(vendorName, op string, err error) *vendor.ProviderError {
	kind := vendor.KindServerError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = vendor.KindTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = vendor.KindTimeout
		}
	}
	return vendor.NewProviderError(vendorName, op, kind, "request failed").WithCause(err)
}

// classifyResponse applies, in order: the mapping's error rules, the builtin
// body conventions, then HTTP status defaults. A nil return means the response
// is a success and safe to decode. Vendors routinely wrap failures in HTTP 200,
// so body rules run regardless of status.
func classifyResponse(vendorName, op string, spec vendor.OperationSpec, status int, body []byte) *vendor.ProviderError {
	text := string(body)

	for _, rule := range spec.ErrorRules {
		if rule.Status != 0 && rule.Status != status {
			continue
		}
		if rule.Match != "" {
			re, err := compiledRule(rule.Match)
			if err != nil || !re.MatchString(text) {
				continue
			}
		}
		if rule.Status == 0 && rule.Match == "" {
			continue
		}
		return vendor.NewProviderError(vendorName, op, rule.Kind, snippet(text)).WithStatus(status)
	}

	upper := strings.ToUpper(text)
	for _, rule := range builtinBodyRules {
		if strings.Contains(upper, rule.marker) {
			return vendor.NewProviderError(vendorName, op, rule.kind, snippet(text)).WithStatus(status)
		}
	}

	if status >= 200 && status < 300 {
		return nil
	}

	var kind vendor.ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = vendor.KindBadCredentials
	case status == http.StatusTooManyRequests:
		kind = vendor.KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = vendor.KindTimeout
	case status >= 500:
		kind = vendor.KindServerError
	case status == http.StatusBadRequest:
		kind = vendor.KindBadRequest
	default:
		kind = vendor.KindUnknown
	}
	return vendor.NewProviderError(vendorName, op, kind, snippet(text)).WithStatus(status)
}

// snippet truncates a response body for error messages.
func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		return text[:200] + "..."
	}
	if text == "" {
		return "empty response body"
	}
	return text
}
