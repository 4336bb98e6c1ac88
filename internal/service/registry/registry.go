package registry

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
)

// Service is the canonical registry: it maps raw vendor country and service
// identifiers onto canonical codes and stable integer IDs. Lookup rows are
// created lazily on first sight and never deleted; the integer ID is the
// stable cross-system key.
type Service struct {
	repo   repository.CatalogRepository
	logger *zap.Logger

	mu       sync.RWMutex
	countryM map[string]catalog.CountryLookup
	serviceM map[string]catalog.ServiceLookup
}

// New creates the registry service.
func New(repo repository.CatalogRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		countryM: make(map[string]catalog.CountryLookup),
		serviceM: make(map[string]catalog.ServiceLookup),
	}
}

// CanonicalCountry resolves a vendor's raw country identifier and name to the
// canonical (code, name, iso2) triple. The code equals the ISO alpha-2 code
// when the name is recognized; otherwise it is a slug of whatever the vendor
// sent, so unknown countries still get a stable key.
func (s *Service) CanonicalCountry(rawID, rawName string) (code, name, iso2 string) {
	probe := strings.ToLower(strings.TrimSpace(rawName))
	if probe == "" {
		probe = strings.ToLower(strings.TrimSpace(rawID))
	}

	// The vendor may already speak ISO alpha-2.
	if len(probe) == 2 {
		if canonical, ok := countryNames[probe]; ok {
			return probe, canonical, probe
		}
	}
	if c, ok := countryAliases[probe]; ok {
		return c, countryNames[c], c
	}

	slug := Slugify(probe)
	display := strings.TrimSpace(rawName)
	if display == "" {
		display = rawID
	}
	return slug, titleCase(display), ""
}

// CanonicalService resolves a vendor's raw service identifier and name to the
// canonical (code, name) pair, applying the alias and display-name overrides.
func (s *Service) CanonicalService(rawID, rawName string) (code, name string) {
	probe := strings.ToLower(strings.TrimSpace(rawID))
	if alias, ok := serviceAliases[probe]; ok {
		probe = alias
	} else if rawName != "" {
		probe = Slugify(rawName)
	} else {
		probe = Slugify(probe)
	}

	if display, ok := serviceNames[probe]; ok {
		return probe, display
	}
	display := strings.TrimSpace(rawName)
	if display == "" {
		display = rawID
	}
	return probe, titleCase(display)
}

// EnsureCountry upserts the canonical country lookup and returns it with its
// stable integer ID. Results are memoized per process.
func (s *Service) EnsureCountry(ctx context.Context, code, name string) (catalog.CountryLookup, error) {
	s.mu.RLock()
	if lookup, ok := s.countryM[code]; ok {
		s.mu.RUnlock()
		return lookup, nil
	}
	s.mu.RUnlock()

	lookup, err := s.repo.EnsureCountryLookup(ctx, code, name)
	if err != nil {
		return catalog.CountryLookup{}, err
	}

	s.mu.Lock()
	s.countryM[code] = lookup
	s.mu.Unlock()
	return lookup, nil
}

// EnsureService upserts the canonical service lookup and returns it with its
// stable integer ID.
func (s *Service) EnsureService(ctx context.Context, code, name string) (catalog.ServiceLookup, error) {
	s.mu.RLock()
	if lookup, ok := s.serviceM[code]; ok {
		s.mu.RUnlock()
		return lookup, nil
	}
	s.mu.RUnlock()

	lookup, err := s.repo.EnsureServiceLookup(ctx, code, name)
	if err != nil {
		return catalog.ServiceLookup{}, err
	}

	s.mu.Lock()
	s.serviceM[code] = lookup
	s.mu.Unlock()
	return lookup, nil
}

// Slugify lowercases s and collapses every run of non-alphanumeric characters
// into a single underscore.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func titleCase(s string) string {
	out := []rune(strings.ToLower(s))
	upperNext := true
	for i, r := range out {
		if upperNext && unicode.IsLetter(r) {
			out[i] = unicode.ToUpper(r)
			upperNext = false
		}
		if r == ' ' || r == '-' || r == '_' {
			upperNext = true
		}
	}
	return string(out)
}
