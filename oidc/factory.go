package oidc

import (
	"fmt"
	"sort"
)

// serviceFactories is the static registry of request kinds. Construction
// goes through NewService so callers never depend on the concrete types.
var serviceFactories = map[string]func() Service{
	ServiceAuthorization:         func() Service { return NewAuthorizationService() },
	ServiceAccessToken:           func() Service { return NewAccessTokenService() },
	ServiceRefreshAccessToken:    func() Service { return NewRefreshAccessTokenService() },
	ServiceProviderInfoDiscovery: func() Service { return NewProviderInfoService() },
	ServiceRegistration:          func() Service { return NewRegistrationService() },
	ServiceUserInfo:              func() Service { return NewUserInfoService() },
	ServiceCheckSession:          func() Service { return NewCheckSessionService() },
	ServiceCheckID:               func() Service { return NewCheckIDService() },
	ServiceEndSession:            func() Service { return NewEndSessionService() },
}

// NewService creates the service implementing the named request kind. An
// unregistered kind fails with ErrUnknownService.
func NewService(kind string) (Service, error) {
	const op = "oidc.NewService"
	factory, ok := serviceFactories[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, kind, ErrUnknownService)
	}
	return factory(), nil
}

// ServiceKinds returns the registered request kinds in sorted order.
func ServiceKinds() []string {
	kinds := make([]string, 0, len(serviceFactories))
	for kind := range serviceFactories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultServices returns one service instance per registered kind, keyed
// by kind.
func DefaultServices() map[string]Service {
	services := make(map[string]Service, len(serviceFactories))
	for kind, factory := range serviceFactories {
		services[kind] = factory()
	}
	return services
}
