package main

import (
	"fmt"
	"io"

	"github.com/RedHatInsights/console-link/internal/config"
	"github.com/RedHatInsights/console-link/internal/realtime"
)

func buildAddressResolver(cfg *config.Config) realtime.AddressResolver {
	return realtime.AddressResolver{
		ProductionHostname:      cfg.ProductionHostname,
		ProductionWebsocketHost: cfg.ProductionWebsocketHost,
		ApiBaseUrl:              cfg.ApiBaseUrl,
		OriginHost:              cfg.OriginHost,
		OriginScheme:            cfg.OriginScheme,
	}
}

func resolveEndpoint(out io.Writer, resource string, id string) error {
	cfg := config.GetConfig()

	if resource == "" {
		resource = cfg.WebsocketResource
	}

	_, err := fmt.Fprintln(out, buildAddressResolver(cfg).Resolve(resource, id))
	return err
}
